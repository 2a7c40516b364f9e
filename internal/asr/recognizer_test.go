package asr

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexiqai/voice-transcriber/internal/audio"
)

// fakeProvider replays a scripted sequence of task states
type fakeProvider struct {
	mu sync.Mutex

	sentence    *SentenceResult
	sentenceErr error
	createErr   error
	states      []TaskState
	result      string
	errorMsg    string

	sentenceCalls int
	createCalls   int
	describeCalls int
	lastRequest   *Request
}

func (f *fakeProvider) SentenceRecognition(_ context.Context, req *Request) (*SentenceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentenceCalls++
	f.lastRequest = req
	if f.sentenceErr != nil {
		return nil, f.sentenceErr
	}
	return f.sentence, nil
}

func (f *fakeProvider) CreateRecTask(_ context.Context, req *Request) (TaskID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastRequest = req
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 4242, nil
}

func (f *fakeProvider) DescribeTaskStatus(ctx context.Context, id TaskID) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	state := TaskWaiting
	if f.describeCalls < len(f.states) {
		state = f.states[f.describeCalls]
	}
	f.describeCalls++

	task := &Task{ID: id, State: state, ErrorMsg: f.errorMsg}
	if !state.Pending() {
		task.Result = f.result
	}
	return task, nil
}

var testPayload = &audio.Payload{Data: []byte("OggS"), Format: audio.FormatOggOpus}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		seconds float64
		want    Strategy
	}{
		{0, Synchronous},
		{10, Synchronous},
		{59.999, Synchronous},
		{60.0, Asynchronous},
		{120, Asynchronous},
	}
	for _, tt := range tests {
		if got := SelectStrategy(tt.seconds); got != tt.want {
			t.Errorf("SelectStrategy(%v) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestReassemble(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "two lines", raw: "0:00:01 hello\n0:00:03 world\n", want: " hello world"},
		{name: "no trailing newline", raw: "0:00:01 hello\n0:00:03 world", want: " hello world"},
		{name: "line without space", raw: "0:00:01\n0:00:02 ok\n", want: " ok"},
		{name: "keeps inner spaces", raw: "[0:0.020,0:2.380]  你好 世界\n", want: "  你好 世界"},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reassemble(tt.raw); got != tt.want {
				t.Errorf("Reassemble(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRecognizeSync(t *testing.T) {
	provider := &fakeProvider{sentence: &SentenceResult{Result: "你好，世界。", RequestID: "req-1"}}
	rec := NewRecognizer(provider, "16k_zh", time.Millisecond, time.Second)

	text, err := rec.Recognize(context.Background(), Synchronous, testPayload)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if text != "你好，世界。" {
		t.Errorf("Expected result verbatim, got %q", text)
	}
	if provider.sentenceCalls != 1 || provider.createCalls != 0 {
		t.Errorf("Expected one sentence call and no task, got %d/%d", provider.sentenceCalls, provider.createCalls)
	}

	req := provider.lastRequest
	if req.EngineType != "16k_zh" || req.Format != audio.FormatOggOpus || req.DataLen != 4 || req.Data != "T2dnUw==" {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestRecognizeSync_ProviderError(t *testing.T) {
	provider := &fakeProvider{sentenceErr: ErrProvider}
	rec := NewRecognizer(provider, "16k_zh", time.Millisecond, time.Second)

	if _, err := rec.RecognizeSync(context.Background(), testPayload); !errors.Is(err, ErrProvider) {
		t.Fatalf("Expected ErrProvider, got %v", err)
	}
	if provider.sentenceCalls != 1 {
		t.Errorf("Expected no retry, got %d calls", provider.sentenceCalls)
	}
}

func TestRecognizeAsync(t *testing.T) {
	provider := &fakeProvider{
		states: []TaskState{TaskWaiting, TaskDoing, TaskDoing, TaskSuccess},
		result: "0:00:01 hello\n0:00:03 world\n",
	}
	rec := NewRecognizer(provider, "16k_zh", time.Millisecond, time.Second)

	text, err := rec.Recognize(context.Background(), Asynchronous, testPayload)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if text != " hello world" {
		t.Errorf("Expected reassembled transcript, got %q", text)
	}
	if provider.createCalls != 1 {
		t.Errorf("Expected one task, got %d", provider.createCalls)
	}
	if provider.describeCalls != 4 {
		t.Errorf("Expected 4 status queries, got %d", provider.describeCalls)
	}
}

func TestRecognizeAsync_PollInterval(t *testing.T) {
	provider := &fakeProvider{states: []TaskState{TaskWaiting, TaskWaiting, TaskSuccess}, result: "t ok"}
	rec := NewRecognizer(provider, "16k_zh", 20*time.Millisecond, time.Second)

	start := time.Now()
	if _, err := rec.RecognizeAsync(context.Background(), testPayload); err != nil {
		t.Fatalf("RecognizeAsync failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected two poll intervals to elapse, got %s", elapsed)
	}
}

func TestRecognizeAsync_Failed(t *testing.T) {
	provider := &fakeProvider{
		states:   []TaskState{TaskDoing, TaskFailed},
		errorMsg: "audio decode failed",
	}
	rec := NewRecognizer(provider, "16k_zh", time.Millisecond, time.Second)

	_, err := rec.RecognizeAsync(context.Background(), testPayload)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("Expected ErrTaskFailed, got %v", err)
	}
	if want := "audio decode failed"; !strings.Contains(err.Error(), want) {
		t.Errorf("Expected error to carry %q, got %v", want, err)
	}
}

func TestRecognizeAsync_Stalled(t *testing.T) {
	provider := &fakeProvider{}
	rec := NewRecognizer(provider, "16k_zh", 5*time.Millisecond, 50*time.Millisecond)

	_, err := rec.RecognizeAsync(context.Background(), testPayload)
	if !errors.Is(err, ErrTaskStalled) {
		t.Fatalf("Expected ErrTaskStalled, got %v", err)
	}
	if provider.describeCalls < 2 {
		t.Errorf("Expected several polls before giving up, got %d", provider.describeCalls)
	}
}

func TestRecognizeAsync_Cancelled(t *testing.T) {
	provider := &fakeProvider{}
	rec := NewRecognizer(provider, "16k_zh", 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := rec.RecognizeAsync(ctx, testPayload)
	if errors.Is(err, ErrTaskStalled) {
		t.Fatal("Expected caller cancellation, not a stall")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRecognizeAsync_CreateError(t *testing.T) {
	provider := &fakeProvider{createErr: ErrProvider}
	rec := NewRecognizer(provider, "16k_zh", time.Millisecond, time.Second)

	if _, err := rec.RecognizeAsync(context.Background(), testPayload); !errors.Is(err, ErrProvider) {
		t.Fatalf("Expected ErrProvider, got %v", err)
	}
	if provider.describeCalls != 0 {
		t.Errorf("Expected no polling without a task, got %d", provider.describeCalls)
	}
}
