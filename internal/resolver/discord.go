package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/message"
)

// maxAttachmentBytes caps a downloaded voice attachment
const maxAttachmentBytes = 64 << 20

// DiscordResolver downloads the voice attachment from its CDN URL
type DiscordResolver struct {
	httpClient *http.Client
}

// NewDiscordResolver creates a Discord resolver with the given fetch timeout
func NewDiscordResolver(timeout time.Duration) *DiscordResolver {
	return &DiscordResolver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve implements Resolver. It issues exactly one GET and does not retry.
func (r *DiscordResolver) Resolve(ctx context.Context, el message.Element) (Outcome, error) {
	src := el.Attr(message.AttrSrc)
	if src == "" {
		return Failed(message.PlatformDiscord, ReasonPayloadUnavailable), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create attachment request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to fetch discord attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{}, fmt.Errorf("discord attachment returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read discord attachment: %w", err)
	}
	if len(data) > maxAttachmentBytes {
		return Outcome{}, fmt.Errorf("discord attachment exceeds %d bytes", maxAttachmentBytes)
	}

	return Resolved(&audio.Payload{Data: data, Format: audio.FormatOggOpus}), nil
}
