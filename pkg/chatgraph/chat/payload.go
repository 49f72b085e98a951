package chat

import (
	"encoding/json"
	"fmt"
)

// Webhook envelope shapes for the WhatsApp Cloud API. Only the fields the
// workflow consumes are decoded.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *webhookMedia `json:"image"`
	Audio *webhookMedia `json:"audio"`
}

type webhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// ParsePayload decodes a webhook POST body into inbound messages. Status
// updates and other message-free notifications decode to an empty slice.
// Unrecognized message types are passed through with their type tag intact
// so the router can reject them explicitly.
func ParsePayload(data []byte) ([]Inbound, error) {
	var payload webhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	var inbounds []Inbound
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				inbounds = append(inbounds, toInbound(msg))
			}
		}
	}
	return inbounds, nil
}

func toInbound(msg webhookMessage) Inbound {
	in := Inbound{
		SenderID: msg.From,
		Type:     MessageType(msg.Type),
	}
	switch {
	case msg.Text != nil:
		in.Text = msg.Text.Body
	case msg.Image != nil:
		in.MediaID = msg.Image.ID
		in.MimeType = msg.Image.MimeType
		in.Caption = msg.Image.Caption
	case msg.Audio != nil:
		in.MediaID = msg.Audio.ID
		in.MimeType = msg.Audio.MimeType
	}
	return in
}
