package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWebhook = `{
  "entry": [
    {
      "changes": [
        {
          "value": {
            "messages": [
              {
                "from": "15550001",
                "type": "text",
                "text": {"body": "Hello there"}
              },
              {
                "from": "15550002",
                "type": "image",
                "image": {"id": "media-42", "mime_type": "image/png", "caption": "look"}
              },
              {
                "from": "15550003",
                "type": "audio",
                "audio": {"id": "voice-7", "mime_type": "audio/ogg; codecs=opus"}
              }
            ]
          }
        }
      ]
    }
  ]
}`

func TestParsePayload(t *testing.T) {
	inbounds, err := ParsePayload([]byte(sampleWebhook))
	require.NoError(t, err)
	require.Len(t, inbounds, 3)

	assert.Equal(t, Inbound{
		SenderID: "15550001", Type: TypeText, Text: "Hello there",
	}, inbounds[0])

	assert.Equal(t, Inbound{
		SenderID: "15550002", Type: TypeImage,
		MediaID: "media-42", MimeType: "image/png", Caption: "look",
	}, inbounds[1])

	assert.Equal(t, Inbound{
		SenderID: "15550003", Type: TypeAudio,
		MediaID: "voice-7", MimeType: "audio/ogg; codecs=opus",
	}, inbounds[2])
}

func TestParsePayload_StatusUpdate(t *testing.T) {
	// Delivery receipts carry no messages array.
	inbounds, err := ParsePayload([]byte(`{"entry":[{"changes":[{"value":{}}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, inbounds)
}

func TestParsePayload_UnknownTypePassesThrough(t *testing.T) {
	payload := `{"entry":[{"changes":[{"value":{"messages":[
		{"from": "15550001", "type": "sticker"}
	]}}]}]}`

	inbounds, err := ParsePayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, inbounds, 1)
	// The type tag survives so the router can reject it explicitly.
	assert.Equal(t, MessageType("sticker"), inbounds[0].Type)
}

func TestParsePayload_Malformed(t *testing.T) {
	_, err := ParsePayload([]byte(`{"entry": not-json`))
	assert.Error(t, err)
}
