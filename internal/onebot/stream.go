package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/resilience"
)

// EventHandler receives every message event read from the stream
type EventHandler func(*Event)

// EventStream consumes the OneBot forward WebSocket event endpoint
type EventStream struct {
	url         string
	accessToken string
	dialer      *websocket.Dialer
	reconnect   *resilience.ReconnectConfig
	logger      zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewEventStream creates an event stream for the given ws:// URL
func NewEventStream(url, accessToken string, reconnect *resilience.ReconnectConfig) *EventStream {
	if reconnect == nil {
		reconnect = resilience.DefaultReconnectConfig()
	}
	return &EventStream{
		url:         url,
		accessToken: accessToken,
		dialer:      websocket.DefaultDialer,
		reconnect:   reconnect,
		logger:      observability.GetLogger().With().Str("component", "onebot_events").Logger(),
	}
}

// Run dials the event endpoint and delivers message events to handle until
// ctx is cancelled, reconnecting whenever the connection drops
func (s *EventStream) Run(ctx context.Context, handle EventHandler) error {
	for {
		err := resilience.Reconnect(ctx, func() error {
			return s.dial(ctx)
		}, s.reconnect)
		if err != nil {
			return err
		}

		s.logger.Info().Str("url", s.url).Msg("OneBot event stream connected")

		if err := s.consume(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("OneBot event stream dropped, reconnecting")
		}
	}
}

func (s *EventStream) dial(ctx context.Context) error {
	header := http.Header{}
	if s.accessToken != "" {
		header.Set("Authorization", "Bearer "+s.accessToken)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("failed to dial onebot events at %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// consume reads events until the connection fails or ctx is done
func (s *EventStream) consume(ctx context.Context, handle EventHandler) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read onebot event: %w", err)
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping undecodable OneBot frame")
			continue
		}
		if !evt.IsMessage() {
			continue
		}
		handle(&evt)
	}
}
