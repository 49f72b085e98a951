package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
)

// transcriptionFailureText is appended in place of a transcript when audio
// retrieval or transcription fails. The conversation continues; the model
// sees that an audio message arrived and could not be understood.
const transcriptionFailureText = "Error transcribing audio message"

// normalizeText appends the text body to the thread history.
func (w *Workflow) normalizeText(ctx chatgraph.Context, s State) (State, error) {
	s.Messages = append(s.Messages, TextMessage(s.Inbound.Text))
	return s, nil
}

// normalizeImage fetches the image bytes and appends them to the history
// as a base64 image entry. A fetch failure is fatal for the run.
func (w *Workflow) normalizeImage(ctx chatgraph.Context, s State) (State, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.settings.MediaTimeout)
	defer cancel()

	data, err := w.deps.Media.FetchMedia(fetchCtx, s.Inbound.MediaID)
	if err != nil {
		return s, &RetrievalError{MediaID: s.Inbound.MediaID, Err: err}
	}

	mediaType := s.Inbound.MimeType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	s.Messages = append(s.Messages, ImageMessage(mediaType, encoded, s.Inbound.Caption))
	return s, nil
}

// normalizeAudio fetches and transcribes the voice message. Unlike the
// image path, failures here degrade in place: the history gets a synthetic
// failure text and the run continues to the generator.
func (w *Workflow) normalizeAudio(ctx chatgraph.Context, s State) (State, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.settings.MediaTimeout)
	defer cancel()

	data, err := w.deps.Media.FetchMedia(fetchCtx, s.Inbound.MediaID)
	if err != nil {
		w.logAudioFailure(ctx.Logger(), &RetrievalError{MediaID: s.Inbound.MediaID, Err: err})
		s.Messages = append(s.Messages, TextMessage(transcriptionFailureText))
		return s, nil
	}

	transcript, err := w.deps.Transcriber.Transcribe(fetchCtx, bytes.NewReader(data), audioFilename(s.Inbound.MimeType))
	if err != nil {
		w.logAudioFailure(ctx.Logger(), &TranscriptionError{Err: err})
		s.Messages = append(s.Messages, TextMessage(transcriptionFailureText))
		return s, nil
	}

	s.Messages = append(s.Messages, TextMessage(transcript))
	return s, nil
}

func (w *Workflow) logAudioFailure(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("audio normalization degraded",
		slog.String("error", err.Error()))
}

// audioFilename maps a mime type to a filename hint for the transcriber.
func audioFilename(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return "voice.mp3"
	case "audio/mp4":
		return "voice.m4a"
	case "audio/wav":
		return "voice.wav"
	default:
		// WhatsApp voice notes are opus in an ogg container.
		return "voice.ogg"
	}
}
