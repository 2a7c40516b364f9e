// Package message models the inbound chat message the recognizer works on,
// independent of any chat host API.
package message

// Platform identifies the chat platform a message originated from
type Platform string

const (
	PlatformOneBot   Platform = "onebot"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
)

// Element types that carry voice data
const (
	ElementAudio  = "audio"
	ElementRecord = "record"
)

// Attribute keys used by the platform resolvers
const (
	AttrFile = "file" // platform file reference (onebot)
	AttrSrc  = "src"  // data URI (telegram) or remote URL (discord)
)

// Element is one segment of a message
type Element struct {
	Type  string            `json:"type" validate:"required"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns the named attribute or an empty string
func (e Element) Attr(key string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[key]
}

// IsAudio reports whether the element carries voice data
func (e Element) IsAudio() bool {
	return e.Type == ElementAudio || e.Type == ElementRecord
}

// Message is a platform-tagged list of elements
type Message struct {
	Platform Platform  `json:"platform" validate:"required"`
	Elements []Element `json:"elements" validate:"dive"`

	// Routing information used to reply on the originating channel
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// FirstAudio returns the first audio or record element
func (m *Message) FirstAudio() (Element, bool) {
	for _, el := range m.Elements {
		if el.IsAudio() {
			return el, true
		}
	}
	return Element{}, false
}
