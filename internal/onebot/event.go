package onebot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexiqai/voice-transcriber/internal/message"
)

// Event is a OneBot v11 event as pushed over the event WebSocket
type Event struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type,omitempty"`
	SubType     string          `json:"sub_type,omitempty"`
	MessageID   int64           `json:"message_id,omitempty"`
	SelfID      int64           `json:"self_id,omitempty"`
	UserID      int64           `json:"user_id,omitempty"`
	GroupID     int64           `json:"group_id,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
}

// Segment is one element of an array-format message
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

var cqCodePattern = regexp.MustCompile(`\[CQ:([a-z_]+)((?:,[^,\]]*)*)\]`)

// IsMessage reports whether the event carries a chat message
func (e *Event) IsMessage() bool {
	return e.PostType == "message"
}

// Target returns the send_msg address that replies on the event's channel
func (e *Event) Target() Target {
	return Target{
		MessageType: e.MessageType,
		UserID:      e.UserID,
		GroupID:     e.GroupID,
	}
}

// Segments decodes the message field, which may be a segment array or a CQ-code string
func (e *Event) Segments() ([]Segment, error) {
	if len(e.Message) == 0 {
		return nil, nil
	}

	var segments []Segment
	if err := json.Unmarshal(e.Message, &segments); err == nil {
		return segments, nil
	}

	var raw string
	if err := json.Unmarshal(e.Message, &raw); err != nil {
		return nil, fmt.Errorf("unsupported message encoding: %w", err)
	}
	return parseCQCodes(raw), nil
}

// ToMessage converts the event into the platform-neutral message model
func (e *Event) ToMessage() (*message.Message, error) {
	segments, err := e.Segments()
	if err != nil {
		return nil, err
	}

	msg := &message.Message{
		Platform: message.PlatformOneBot,
		Elements: make([]message.Element, 0, len(segments)),
		UserID:   strconv.FormatInt(e.UserID, 10),
	}
	if e.MessageType == "group" {
		msg.ChannelID = strconv.FormatInt(e.GroupID, 10)
	} else {
		msg.ChannelID = "private:" + msg.UserID
	}

	for _, seg := range segments {
		attrs := make(map[string]string, len(seg.Data))
		for k, v := range seg.Data {
			attrs[k] = attrString(v)
		}
		msg.Elements = append(msg.Elements, message.Element{Type: seg.Type, Attrs: attrs})
	}
	return msg, nil
}

// parseCQCodes extracts the CQ-code segments of a string-format message.
// Plain text between codes is not needed by the recognizer and is dropped.
func parseCQCodes(raw string) []Segment {
	var segments []Segment
	for _, m := range cqCodePattern.FindAllStringSubmatch(raw, -1) {
		seg := Segment{Type: m[1], Data: map[string]any{}}
		for _, kv := range strings.Split(strings.TrimPrefix(m[2], ","), ",") {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			seg.Data[key] = unescapeCQ(value)
		}
		segments = append(segments, seg)
	}
	return segments
}

func attrString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func unescapeCQ(s string) string {
	return strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&").Replace(s)
}
