package audio

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Format is the encoding tag the ASR provider expects for a payload
type Format string

const (
	FormatWAV     Format = "wav"
	FormatOggOpus Format = "ogg-opus"
)

// ErrNoDataURIPayload is returned when a data URI has no comma-delimited body
var ErrNoDataURIPayload = errors.New("data uri has no payload")

// Payload is the raw audio of a single recognition request
type Payload struct {
	Data   []byte
	Format Format
}

// NewPayloadFromBase64 decodes a standard base64 body into a payload
func NewPayloadFromBase64(encoded string, format Format) (*Payload, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	return &Payload{Data: data, Format: format}, nil
}

// Base64 returns the payload encoded the way the provider's Data field expects
func (p *Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// Len returns the size of the undecoded audio in bytes
func (p *Payload) Len() int {
	return len(p.Data)
}

// DataURIBody returns everything after the first comma of a data URI,
// e.g. "data:audio/ogg;base64,T2dnUw==" -> "T2dnUw=="
func DataURIBody(uri string) (string, error) {
	_, body, found := strings.Cut(uri, ",")
	if !found || body == "" {
		return "", ErrNoDataURIPayload
	}
	return body, nil
}
