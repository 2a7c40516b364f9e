package asr

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/observability"
)

// DefaultPollInterval is the fixed delay between task status queries
const DefaultPollInterval = 618 * time.Millisecond

// Recognizer runs payloads through the provider on a single engine
type Recognizer struct {
	provider     Provider
	engine       string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       zerolog.Logger
}

// NewRecognizer creates a recognizer. A zero maxWait leaves asynchronous
// tasks bounded only by the caller's context.
func NewRecognizer(provider Provider, engine string, pollInterval, maxWait time.Duration) *Recognizer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Recognizer{
		provider:     provider,
		engine:       engine,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       observability.GetLogger().With().Str("component", "recognizer").Logger(),
	}
}

// Recognize runs payload on the path chosen for its duration
func (r *Recognizer) Recognize(ctx context.Context, strategy Strategy, payload *audio.Payload) (string, error) {
	if strategy == Synchronous {
		return r.RecognizeSync(ctx, payload)
	}
	return r.RecognizeAsync(ctx, payload)
}

// RecognizeSync issues one short-form call and returns its result verbatim
func (r *Recognizer) RecognizeSync(ctx context.Context, payload *audio.Payload) (string, error) {
	res, err := r.provider.SentenceRecognition(ctx, NewRequest(r.engine, payload))
	if err != nil {
		return "", err
	}

	r.logger.Debug().
		Str("request_id", res.RequestID).
		Int64("audio_duration_ms", res.AudioDurationMs).
		Msg("Sentence recognized")
	return res.Result, nil
}

// RecognizeAsync submits a recognition task, polls it at a fixed interval
// until it leaves the waiting/doing states, and reassembles the transcript.
func (r *Recognizer) RecognizeAsync(ctx context.Context, payload *audio.Payload) (string, error) {
	id, err := r.provider.CreateRecTask(ctx, NewRequest(r.engine, payload))
	if err != nil {
		return "", err
	}

	logger := r.logger.With().Uint64("task_id", uint64(id)).Logger()
	logger.Info().Int("bytes", payload.Len()).Msg("Recognition task created")

	pollCtx := ctx
	if r.maxWait > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, r.maxWait)
		defer cancel()
	}

	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	polls := 0
	defer func() { observability.ObserveTaskPolls(polls) }()

	for {
		polls++
		task, err := r.provider.DescribeTaskStatus(pollCtx, id)
		if err != nil {
			if stalled(ctx, pollCtx) {
				return "", r.stalledError(id)
			}
			return "", err
		}

		if !task.State.Pending() {
			if task.State == TaskFailed {
				logger.Warn().Str("error_msg", task.ErrorMsg).Int("polls", polls).Msg("Recognition task failed")
				return "", fmt.Errorf("%w: task %d: %s", ErrTaskFailed, id, task.ErrorMsg)
			}

			logger.Info().
				Str("state", string(task.State)).
				Float64("audio_duration", task.AudioDuration).
				Int("polls", polls).
				Msg("Recognition task finished")
			return Reassemble(task.Result), nil
		}

		timer.Reset(r.pollInterval)
		select {
		case <-pollCtx.Done():
			if stalled(ctx, pollCtx) {
				return "", r.stalledError(id)
			}
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Recognizer) stalledError(id TaskID) error {
	return fmt.Errorf("%w: task %d still pending after %s", ErrTaskStalled, id, r.maxWait)
}

// stalled reports whether the wait budget expired while the caller's context is still live
func stalled(ctx, pollCtx context.Context) bool {
	return pollCtx.Err() != nil && ctx.Err() == nil
}
