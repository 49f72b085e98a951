package chat

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMessageType indicates the router received a type tag it
// does not recognize. The run aborts before any node executes and the
// thread's history is left unchanged.
var ErrUnsupportedMessageType = errors.New("unsupported message type")

// ValidationError rejects an inbound message before the graph runs.
type ValidationError struct {
	// Field is the missing or malformed field.
	Field string
	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s: %s", e.Field, e.Reason)
}

// RetrievalError wraps a media byte-fetch failure. Fatal for image
// normalization; the audio normalizer recovers from it locally.
type RetrievalError struct {
	// MediaID is the media identifier that could not be fetched.
	MediaID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("fetch media %s: %v", e.MediaID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// TranscriptionError wraps an audio transcription failure. The audio
// normalizer recovers from it locally; it never terminates a run.
type TranscriptionError struct {
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe audio: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// ModelError wraps a response-generation failure. Fatal; not retried.
type ModelError struct {
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("generate response: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// SendError wraps a delivery failure. Fatal, but checkpoints committed
// before dispatch are not rolled back.
type SendError struct {
	// Recipient is the intended recipient.
	Recipient string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SendError) Unwrap() error {
	return e.Err
}
