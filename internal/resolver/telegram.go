package resolver

import (
	"context"

	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/message"
)

// TelegramResolver reads the voice note embedded in the element as a data URI
type TelegramResolver struct{}

// NewTelegramResolver creates a Telegram resolver
func NewTelegramResolver() *TelegramResolver {
	return &TelegramResolver{}
}

// Resolve implements Resolver
func (r *TelegramResolver) Resolve(_ context.Context, el message.Element) (Outcome, error) {
	src := el.Attr(message.AttrSrc)
	if src == "" {
		return Failed(message.PlatformTelegram, ReasonPayloadUnavailable), nil
	}

	body, err := audio.DataURIBody(src)
	if err != nil {
		return Failed(message.PlatformTelegram, ReasonPayloadUnavailable), nil
	}

	payload, err := audio.NewPayloadFromBase64(body, audio.FormatOggOpus)
	if err != nil {
		return Failed(message.PlatformTelegram, ReasonPayloadUnavailable), nil
	}
	return Resolved(payload), nil
}
