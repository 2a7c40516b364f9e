// Package asr drives the speech recognition provider: it picks a strategy
// from the probed duration, runs short audio through the one-shot endpoint
// and long audio through a polled recognition task.
package asr

import (
	"context"
	"errors"

	"github.com/lexiqai/voice-transcriber/internal/audio"
)

var (
	// ErrProvider wraps every rejected or failed provider call
	ErrProvider = errors.New("asr provider error")

	// ErrTaskFailed is returned when a recognition task ends in the failed state
	ErrTaskFailed = errors.New("recognition task failed")

	// ErrTaskStalled is returned when a task is still pending after the wait budget
	ErrTaskStalled = errors.New("recognition task did not finish in time")
)

// Request carries one audio payload to the provider
type Request struct {
	EngineType string
	Format     audio.Format
	Data       string // base64 of the raw audio
	DataLen    int    // length of the raw audio before encoding
}

// NewRequest builds a provider request for payload on the given engine
func NewRequest(engine string, payload *audio.Payload) *Request {
	return &Request{
		EngineType: engine,
		Format:     payload.Format,
		Data:       payload.Base64(),
		DataLen:    payload.Len(),
	}
}

// SentenceResult is the answer of a one-shot recognition
type SentenceResult struct {
	Result          string
	AudioDurationMs int64
	RequestID       string
}

// TaskID identifies a provider-side recognition task
type TaskID uint64

// TaskState is the provider's status of a recognition task
type TaskState string

const (
	TaskWaiting TaskState = "waiting"
	TaskDoing   TaskState = "doing"
	TaskSuccess TaskState = "success"
	TaskFailed  TaskState = "failed"
)

// Pending reports whether the task has not reached a terminal state
func (s TaskState) Pending() bool {
	return s == TaskWaiting || s == TaskDoing
}

// Task is a snapshot of a recognition task
type Task struct {
	ID            TaskID
	State         TaskState
	Result        string
	ErrorMsg      string
	AudioDuration float64
}

// Provider is the external speech recognition service
type Provider interface {
	SentenceRecognition(ctx context.Context, req *Request) (*SentenceResult, error)
	CreateRecTask(ctx context.Context, req *Request) (TaskID, error)
	DescribeTaskStatus(ctx context.Context, id TaskID) (*Task, error)
}
