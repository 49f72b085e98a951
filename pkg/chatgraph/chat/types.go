// Package chat implements the conversational message workflow: route an
// inbound message by type, normalize it into the thread's history, generate
// a model response, and dispatch it back to the sender.
package chat

// MessageType is the closed set of inbound message type tags.
type MessageType string

// Recognized inbound message types.
const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
)

// Inbound describes one received message, as decoded from the transport.
type Inbound struct {
	// SenderID is the sender's phone number. Required.
	SenderID string `json:"sender_id"`

	// Type is the message type tag.
	Type MessageType `json:"type"`

	// Text is the body for text messages.
	Text string `json:"text,omitempty"`

	// MediaID identifies downloadable media for image and audio messages.
	MediaID string `json:"media_id,omitempty"`

	// MimeType is the media content type, e.g. "image/jpeg".
	MimeType string `json:"mime_type,omitempty"`

	// Caption is the optional text attached to an image.
	Caption string `json:"caption,omitempty"`
}

// Validate rejects messages that cannot enter the graph: a missing sender
// or missing content for the declared type.
func (in Inbound) Validate() error {
	if in.SenderID == "" {
		return &ValidationError{Field: "sender_id", Reason: "missing"}
	}
	switch in.Type {
	case TypeText:
		if in.Text == "" {
			return &ValidationError{Field: "text", Reason: "missing body"}
		}
	case TypeImage, TypeAudio:
		if in.MediaID == "" {
			return &ValidationError{Field: "media_id", Reason: "missing"}
		}
	case "":
		return &ValidationError{Field: "type", Reason: "missing"}
	}
	return nil
}

// ThreadKey derives the stable conversation key for the sender. Every
// message from the same sender maps to the same key, so checkpoint history
// accretes per conversation.
func (in Inbound) ThreadKey() string {
	return "whatsapp:" + in.SenderID
}

// MessageKind discriminates history message variants.
type MessageKind string

// History message kinds.
const (
	KindText      MessageKind = "text"
	KindImage     MessageKind = "image"
	KindAssistant MessageKind = "assistant"
)

// Message is one entry in a thread's history. Kind selects which fields
// are meaningful.
type Message struct {
	Kind MessageKind `json:"kind"`

	// Text holds the body for text and assistant messages, and the
	// transcript for normalized audio.
	Text string `json:"text,omitempty"`

	// Caption, MediaType, and Data describe an image message. Data is
	// base64 without a data-URI prefix.
	Caption   string `json:"caption,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TextMessage builds a user text entry.
func TextMessage(text string) Message {
	return Message{Kind: KindText, Text: text}
}

// ImageMessage builds a user image entry.
func ImageMessage(mediaType, data, caption string) Message {
	return Message{Kind: KindImage, MediaType: mediaType, Data: data, Caption: caption}
}

// AssistantMessage builds an assistant reply entry.
func AssistantMessage(text string) Message {
	return Message{Kind: KindAssistant, Text: text}
}
