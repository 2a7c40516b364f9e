// Package bot replies to OneBot voice messages with their transcript.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-transcriber/internal/locale"
	"github.com/lexiqai/voice-transcriber/internal/message"
	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/onebot"
	"github.com/lexiqai/voice-transcriber/internal/resilience"
	"github.com/lexiqai/voice-transcriber/internal/transcriber"
)

// replyTimeout bounds delivery of a reply, retries included
const replyTimeout = 10 * time.Second

// EventSource delivers OneBot message events until ctx is done
type EventSource interface {
	Run(ctx context.Context, handle onebot.EventHandler) error
}

// Sender posts a text reply
type Sender interface {
	SendMsg(ctx context.Context, target onebot.Target, text string) error
}

// Transcriber is the recognition service
type Transcriber interface {
	Audio2Text(ctx context.Context, msg *message.Message) (*transcriber.Result, error)
}

// Bot recognizes every voice message it sees and answers on the same channel
type Bot struct {
	events  EventSource
	sender  Sender
	service Transcriber
	printer *locale.Printer
	retry   *resilience.RetryConfig
	logger  zerolog.Logger

	wg sync.WaitGroup
}

// New creates a bot
func New(events EventSource, sender Sender, service Transcriber, lang string) *Bot {
	return &Bot{
		events:  events,
		sender:  sender,
		service: service,
		printer: locale.NewPrinter(lang),
		retry:   resilience.DefaultRetryConfig(),
		logger:  observability.GetLogger().With().Str("component", "bot").Logger(),
	}
}

// Run consumes events until ctx is cancelled, then waits for in-flight
// recognitions to finish. Each voice message is handled on its own goroutine
// so a long task never holds up the stream.
func (b *Bot) Run(ctx context.Context) error {
	err := b.events.Run(ctx, func(evt *onebot.Event) {
		b.dispatch(ctx, evt)
	})
	b.wg.Wait()
	return err
}

func (b *Bot) dispatch(ctx context.Context, evt *onebot.Event) {
	msg, err := evt.ToMessage()
	if err != nil {
		b.logger.Debug().Err(err).Int64("message_id", evt.MessageID).Msg("Skipping undecodable message")
		return
	}
	if _, ok := msg.FirstAudio(); !ok {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handle(ctx, evt.Target(), msg)
	}()
}

func (b *Bot) handle(ctx context.Context, target onebot.Target, msg *message.Message) {
	correlationID := observability.NewCorrelationID()
	logger := b.logger.With().Str("correlation_id", correlationID).Str("channel", msg.ChannelID).Logger()

	var reply string
	result, err := b.service.Audio2Text(observability.ContextWithCorrelationID(ctx, correlationID), msg)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("Recognition failed")
		reply = transcriber.RenderError(b.printer, err)
	} else {
		reply = result.Render(b.printer)
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	err = resilience.Retry(sendCtx, b.retry, func(ctx context.Context) error {
		return b.sender.SendMsg(ctx, target, reply)
	}, resilience.IsRetryableNetworkError)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send transcript")
		return
	}
	logger.Info().Str("status", statusOf(result)).Msg("Transcript sent")
}

func statusOf(result *transcriber.Result) string {
	if result == nil {
		return "error"
	}
	return string(result.Status)
}
