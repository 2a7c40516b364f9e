package resolver

import (
	"context"
	"fmt"

	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/message"
	"github.com/lexiqai/voice-transcriber/internal/onebot"
)

// RecordFetcher is the OneBot capability the resolver needs
type RecordFetcher interface {
	GetRecord(ctx context.Context, file, outFormat string) (*onebot.Record, error)
}

// OneBotResolver asks the OneBot implementation for the record as base64 WAV
type OneBotResolver struct {
	records RecordFetcher
}

// NewOneBotResolver creates a resolver backed by the get_record action
func NewOneBotResolver(records RecordFetcher) *OneBotResolver {
	return &OneBotResolver{records: records}
}

// Resolve implements Resolver
func (r *OneBotResolver) Resolve(ctx context.Context, el message.Element) (Outcome, error) {
	file := el.Attr(message.AttrFile)
	if file == "" {
		return Failed(message.PlatformOneBot, ReasonPayloadUnavailable), nil
	}

	rec, err := r.records.GetRecord(ctx, file, string(audio.FormatWAV))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to fetch onebot record: %w", err)
	}

	// base64 is only returned with enableLocalFile2Url switched on
	if rec.Base64 == "" {
		return Failed(message.PlatformOneBot, ReasonCapabilityDisabled), nil
	}

	payload, err := audio.NewPayloadFromBase64(rec.Base64, audio.FormatWAV)
	if err != nil {
		return Failed(message.PlatformOneBot, ReasonPayloadUnavailable), nil
	}
	return Resolved(payload), nil
}
