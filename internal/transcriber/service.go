// Package transcriber turns a platform message into text: it resolves the
// first audio element, probes its duration, and recognizes it on the path
// the duration selects.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexiqai/voice-transcriber/internal/asr"
	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/locale"
	"github.com/lexiqai/voice-transcriber/internal/message"
	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/resolver"
)

// Status is the kind of outcome of one Audio2Text call
type Status string

const (
	StatusText    Status = "text"
	StatusNoAudio Status = "no_audio"
	StatusFailed  Status = "failed"
)

// AudioResolver resolves an audio element for a platform
type AudioResolver interface {
	Resolve(ctx context.Context, platform message.Platform, el message.Element) (resolver.Outcome, error)
}

// DurationProber measures payload duration in seconds
type DurationProber interface {
	Probe(ctx context.Context, payload *audio.Payload) (float64, error)
}

// Recognizer runs a payload on the given strategy
type Recognizer interface {
	Recognize(ctx context.Context, strategy asr.Strategy, payload *audio.Payload) (string, error)
}

// Result is the outcome of Audio2Text. Failure is set only for StatusFailed.
type Result struct {
	Status   Status
	Text     string
	Failure  *resolver.Failure
	Strategy asr.Strategy
	Duration float64
}

// Render returns the text to show the user. Missing or empty transcripts
// become the speak-louder prompt.
func (r *Result) Render(p *locale.Printer) string {
	switch r.Status {
	case StatusFailed:
		if r.Failure != nil {
			return p.Text(string(r.Failure.Reason))
		}
		return p.Text(locale.KeyRecognitionFailed)
	case StatusText:
		if strings.TrimSpace(r.Text) != "" {
			return r.Text
		}
	}
	return p.Text(locale.KeyLouder)
}

// RenderError returns the user-facing text for an Audio2Text error
func RenderError(p *locale.Printer, err error) string {
	if errors.Is(err, asr.ErrTaskStalled) || errors.Is(err, context.DeadlineExceeded) {
		return p.Text(locale.KeyRecognitionTimeout)
	}
	return p.Text(locale.KeyRecognitionFailed)
}

// Service orchestrates one recognition per call; it holds no per-request state
type Service struct {
	resolver   AudioResolver
	prober     DurationProber
	recognizer Recognizer
}

// NewService creates the recognition service
func NewService(res AudioResolver, prober DurationProber, recognizer Recognizer) *Service {
	return &Service{
		resolver:   res,
		prober:     prober,
		recognizer: recognizer,
	}
}

// Audio2Text recognizes the first audio element of msg. Unresolvable audio
// is reported in the Result; probe and provider failures are returned as errors.
func (s *Service) Audio2Text(ctx context.Context, msg *message.Message) (result *Result, err error) {
	requestID := observability.CorrelationIDFromContext(ctx)
	logger := observability.WithCorrelationID(requestID).With().Str("platform", string(msg.Platform)).Logger()

	metrics := observability.NewRequestMetrics(requestID)
	metrics.RecordRequestStart()
	defer func() {
		strategy, status := "none", "error"
		if result != nil {
			status = string(result.Status)
			if result.Strategy != "" {
				strategy = string(result.Strategy)
			}
		}
		metrics.RecordRequestEnd(strategy, status)
	}()

	el, ok := msg.FirstAudio()
	if !ok {
		logger.Debug().Msg("No audio element in message")
		return &Result{Status: StatusNoAudio}, nil
	}

	metrics.RecordStageStart(observability.StageResolve)
	outcome, err := s.resolver.Resolve(ctx, msg.Platform, el)
	metrics.RecordStageEnd(observability.StageResolve, err == nil)
	if err != nil {
		metrics.RecordError("resolve_failed", observability.StageResolve)
		return nil, fmt.Errorf("failed to resolve audio: %w", err)
	}
	if !outcome.OK() {
		metrics.RecordResolverFailure(string(msg.Platform), string(outcome.Failure.Reason))
		logger.Info().Str("reason", string(outcome.Failure.Reason)).Msg("Audio could not be resolved")
		return &Result{Status: StatusFailed, Failure: outcome.Failure}, nil
	}

	payload := outcome.Payload
	metrics.RecordAudioBytes(string(msg.Platform), string(payload.Format), payload.Len())

	metrics.RecordStageStart(observability.StageProbe)
	seconds, err := s.prober.Probe(ctx, payload)
	metrics.RecordStageEnd(observability.StageProbe, err == nil)
	if err != nil {
		metrics.RecordError("probe_failed", observability.StageProbe)
		return nil, fmt.Errorf("failed to probe audio duration: %w", err)
	}
	metrics.RecordAudioDuration(seconds)

	strategy := asr.SelectStrategy(seconds)
	stage := observability.StageSync
	if strategy == asr.Asynchronous {
		stage = observability.StageAsync
	}

	logger.Info().
		Float64("duration", seconds).
		Str("strategy", string(strategy)).
		Int("bytes", payload.Len()).
		Msg("Recognizing audio")

	metrics.RecordStageStart(stage)
	text, err := s.recognizer.Recognize(ctx, strategy, payload)
	metrics.RecordStageEnd(stage, err == nil)
	if err != nil {
		metrics.RecordError("recognition_failed", stage)
		return nil, fmt.Errorf("%s recognition failed: %w", strategy, err)
	}

	return &Result{
		Status:   StatusText,
		Text:     text,
		Strategy: strategy,
		Duration: seconds,
	}, nil
}
