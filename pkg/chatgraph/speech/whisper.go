// Package speech provides audio transcription for inbound voice messages.
package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber converts recorded audio into text.
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Transcribe reads audio from r and returns the recognized text.
	// filename hints the container format (e.g. "voice.ogg").
	Transcribe(ctx context.Context, r io.Reader, filename string) (string, error)
}

// Whisper implements Transcriber using the OpenAI Whisper API.
type Whisper struct {
	client  openai.Client
	model   openai.AudioModel
	reqOpts []option.RequestOption
}

// WhisperOption configures a Whisper transcriber.
type WhisperOption func(*Whisper)

// NewWhisper creates a Whisper transcriber. The API key comes from the
// environment (OPENAI_API_KEY) unless overridden with WithAPIKey.
func NewWhisper(opts ...WhisperOption) *Whisper {
	w := &Whisper{
		model: openai.AudioModelWhisper1,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.client = openai.NewClient(w.reqOpts...)
	return w
}

// WithAPIKey sets an explicit API key.
func WithAPIKey(key string) WhisperOption {
	return func(w *Whisper) {
		w.reqOpts = append(w.reqOpts, option.WithAPIKey(key))
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) WhisperOption {
	return func(w *Whisper) {
		w.reqOpts = append(w.reqOpts, option.WithBaseURL(url))
	}
}

// WithModel sets the transcription model.
func WithModel(model string) WhisperOption {
	return func(w *Whisper) { w.model = openai.AudioModel(model) }
}

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, r io.Reader, filename string) (string, error) {
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: w.model,
		File:  openai.File(r, filename, "application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return resp.Text, nil
}
