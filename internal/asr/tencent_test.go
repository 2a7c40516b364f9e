package asr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lexiqai/voice-transcriber/internal/resilience"
)

// newTencentStub answers Tencent Cloud API calls by X-TC-Action
func newTencentStub(t *testing.T, replies map[string]string) (*TencentProvider, *resilience.CircuitBreaker) {
	t.Helper()
	return newSlowTencentStub(t, replies, 0)
}

// newSlowTencentStub is newTencentStub with every answer held back by delay
func newSlowTencentStub(t *testing.T, replies map[string]string, delay time.Duration) (*TencentProvider, *resilience.CircuitBreaker) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		action := r.Header.Get("X-TC-Action")
		reply, ok := replies[action]
		if !ok {
			t.Errorf("unexpected action %q", action)
			reply = `{"Response":{"Error":{"Code":"InvalidAction","Message":"unknown"},"RequestId":"stub"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	breaker := resilience.NewCircuitBreaker("tencent_asr_test", 2, time.Minute)
	provider, err := NewTencentProvider(TencentConfig{
		SecretID:  "id",
		SecretKey: "key",
		Region:    "ap-guangzhou",
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		Insecure:  true,
	}, breaker)
	if err != nil {
		t.Fatalf("NewTencentProvider failed: %v", err)
	}
	return provider, breaker
}

func TestTencentProvider_SentenceRecognition(t *testing.T) {
	provider, _ := newTencentStub(t, map[string]string{
		"SentenceRecognition": `{"Response":{"Result":"hello","AudioDuration":3200,"RequestId":"r-1"}}`,
	})

	res, err := provider.SentenceRecognition(context.Background(), NewRequest("16k_zh", testPayload))
	if err != nil {
		t.Fatalf("SentenceRecognition failed: %v", err)
	}
	if res.Result != "hello" || res.AudioDurationMs != 3200 || res.RequestID != "r-1" {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestTencentProvider_Task(t *testing.T) {
	status, _ := json.Marshal(map[string]any{"Response": map[string]any{
		"Data": map[string]any{
			"TaskId":        7,
			"Status":        2,
			"StatusStr":     "success",
			"Result":        "[0:0.020,0:1.000]  hi\n",
			"ErrorMsg":      "",
			"AudioDuration": 61.5,
		},
		"RequestId": "r-3",
	}})
	provider, _ := newTencentStub(t, map[string]string{
		"CreateRecTask":      `{"Response":{"Data":{"TaskId":7},"RequestId":"r-2"}}`,
		"DescribeTaskStatus": string(status),
	})

	id, err := provider.CreateRecTask(context.Background(), NewRequest("16k_zh", testPayload))
	if err != nil {
		t.Fatalf("CreateRecTask failed: %v", err)
	}
	if id != 7 {
		t.Fatalf("Expected task 7, got %d", id)
	}

	task, err := provider.DescribeTaskStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("DescribeTaskStatus failed: %v", err)
	}
	if task.State != TaskSuccess || task.AudioDuration != 61.5 {
		t.Errorf("Unexpected task %+v", task)
	}
}

func TestTencentProvider_ErrorOpensBreaker(t *testing.T) {
	provider, breaker := newTencentStub(t, map[string]string{
		"SentenceRecognition": `{"Response":{"Error":{"Code":"InternalError.ErrorRecognize","Message":"recognition engine error"},"RequestId":"r-4"}}`,
	})

	for i := 0; i < 2; i++ {
		_, err := provider.SentenceRecognition(context.Background(), NewRequest("16k_zh", testPayload))
		if !errors.Is(err, ErrProvider) {
			t.Fatalf("Expected ErrProvider, got %v", err)
		}
		if !strings.Contains(err.Error(), "InternalError.ErrorRecognize") {
			t.Errorf("Expected provider code in error, got %v", err)
		}
	}

	if breaker.GetState() != resilience.StateOpen {
		t.Fatalf("Expected breaker to open, got %s", breaker.GetState())
	}

	_, err := provider.SentenceRecognition(context.Background(), NewRequest("16k_zh", testPayload))
	if !errors.Is(err, ErrProvider) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected fast failure through the open breaker, got %v", err)
	}
}

func TestTencentProvider_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	provider, breaker := newSlowTencentStub(t, map[string]string{
		"DescribeTaskStatus": `{"Response":{"Data":{"TaskId":7,"Status":1,"StatusStr":"doing"},"RequestId":"r-5"}}`,
	}, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := provider.DescribeTaskStatus(ctx, 7)
		cancel()
		if err == nil {
			t.Fatal("Expected the cut-off call to fail")
		}
	}

	if breaker.GetState() != resilience.StateClosed {
		t.Fatalf("Expected cancelled calls to leave the breaker closed, got %s", breaker.GetState())
	}
	if healthy, err := provider.HealthCheck(context.Background()); !healthy || err != nil {
		t.Errorf("Expected provider to stay ready, got %v, %v", healthy, err)
	}
}

func TestTencentProvider_BadAudioKeepsBreakerClosed(t *testing.T) {
	provider, breaker := newTencentStub(t, map[string]string{
		"SentenceRecognition": `{"Response":{"Error":{"Code":"FailedOperation.ErrorDecodeAudio","Message":"decode audio failed"},"RequestId":"r-6"}}`,
		"CreateRecTask":       `{"Response":{"Error":{"Code":"InvalidParameterValue","Message":"bad data length"},"RequestId":"r-7"}}`,
	})

	for i := 0; i < 3; i++ {
		if _, err := provider.SentenceRecognition(context.Background(), NewRequest("16k_zh", testPayload)); !errors.Is(err, ErrProvider) {
			t.Fatalf("Expected ErrProvider, got %v", err)
		}
		if _, err := provider.CreateRecTask(context.Background(), NewRequest("16k_zh", testPayload)); !errors.Is(err, ErrProvider) {
			t.Fatalf("Expected ErrProvider, got %v", err)
		}
	}

	if breaker.GetState() != resilience.StateClosed {
		t.Fatalf("Expected request errors to leave the breaker closed, got %s", breaker.GetState())
	}
}

func TestTencentProvider_HealthCheckReportsOpenCircuit(t *testing.T) {
	provider, breaker := newTencentStub(t, map[string]string{})
	breaker.RecordResult(false)
	breaker.RecordResult(false)

	healthy, err := provider.HealthCheck(context.Background())
	if healthy || err == nil {
		t.Fatal("Expected an open circuit to fail the check")
	}
	if !strings.Contains(err.Error(), "2 failures in 2 requests") {
		t.Errorf("Expected breaker stats in the message, got %v", err)
	}
}
