// Package api exposes the recognition service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lexiqai/voice-transcriber/internal/asr"
	"github.com/lexiqai/voice-transcriber/internal/locale"
	"github.com/lexiqai/voice-transcriber/internal/message"
	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/transcriber"
)

// CorrelationHeader carries the request's correlation ID in both directions
const CorrelationHeader = "X-Correlation-ID"

// maxBodyBytes bounds a request; telegram voice notes arrive inline as base64
const maxBodyBytes = 32 << 20

// Transcriber is the recognition service the handler calls
type Transcriber interface {
	Audio2Text(ctx context.Context, msg *message.Message) (*transcriber.Result, error)
}

// Response is the body of a successful call
type Response struct {
	Status          transcriber.Status `json:"status"`
	Text            string             `json:"text,omitempty"`
	Message         string             `json:"message,omitempty"`
	Reason          string             `json:"reason,omitempty"`
	Strategy        asr.Strategy       `json:"strategy,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
}

// ErrorResponse is the body of a rejected or failed call
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler serves POST /v1/audio2text
type Handler struct {
	service  Transcriber
	printer  *locale.Printer
	validate *validator.Validate
}

// NewHandler creates the audio2text handler rendering text in lang
func NewHandler(service Transcriber, lang string) *Handler {
	return &Handler{
		service:  service,
		printer:  locale.NewPrinter(lang),
		validate: validator.New(),
	}
}

// Register mounts the handler on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/v1/audio2text", h)
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get(CorrelationHeader)
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	w.Header().Set(CorrelationHeader, correlationID)
	logger := observability.WithCorrelationID(correlationID)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	var msg message.Message
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if err := h.validate.Struct(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Message: err.Error()})
		return
	}

	ctx := observability.ContextWithCorrelationID(r.Context(), correlationID)
	result, err := h.service.Audio2Text(ctx, &msg)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, asr.ErrTaskStalled) || errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		logger.Error().Err(err).Str("platform", string(msg.Platform)).Msg("Recognition failed")
		writeJSON(w, code, ErrorResponse{Error: err.Error(), Message: transcriber.RenderError(h.printer, err)})
		return
	}

	resp := Response{
		Status:          result.Status,
		Strategy:        result.Strategy,
		DurationSeconds: result.Duration,
	}
	switch result.Status {
	case transcriber.StatusText:
		resp.Text = result.Text
	case transcriber.StatusFailed:
		if result.Failure != nil {
			resp.Reason = string(result.Failure.Reason)
		}
	}
	resp.Message = result.Render(h.printer)

	logger.Info().
		Str("platform", string(msg.Platform)).
		Str("status", string(result.Status)).
		Str("strategy", string(result.Strategy)).
		Msg("Recognition completed")
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
