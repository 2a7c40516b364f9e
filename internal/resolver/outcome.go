// Package resolver turns the audio element of a platform message into an
// audio payload, or a failure reason the caller can show to the user.
package resolver

import (
	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/message"
)

// Reason classifies why audio could not be resolved. These are recoverable
// only by user or admin action and are returned as data, not errors.
type Reason string

const (
	ReasonCapabilityDisabled  Reason = "capability_disabled"
	ReasonPayloadUnavailable  Reason = "payload_unavailable"
	ReasonPlatformUnsupported Reason = "platform_unsupported"
)

// String returns the human-readable reason
func (r Reason) String() string {
	switch r {
	case ReasonCapabilityDisabled:
		return "platform capability not enabled"
	case ReasonPayloadUnavailable:
		return "payload unavailable"
	case ReasonPlatformUnsupported:
		return "platform unsupported"
	default:
		return string(r)
	}
}

// Failure describes unresolvable audio
type Failure struct {
	Reason   Reason
	Platform message.Platform
}

// Outcome holds either a payload or a failure, never both
type Outcome struct {
	Payload *audio.Payload
	Failure *Failure
}

// Resolved wraps a payload
func Resolved(p *audio.Payload) Outcome {
	return Outcome{Payload: p}
}

// Failed wraps a failure reason
func Failed(platform message.Platform, reason Reason) Outcome {
	return Outcome{Failure: &Failure{Reason: reason, Platform: platform}}
}

// OK reports whether the outcome carries a payload
func (o Outcome) OK() bool {
	return o.Payload != nil
}
