package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisper_Transcribe(t *testing.T) {
	var gotPath, gotModel, gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "turn on the lights"}`))
	}))
	defer srv.Close()

	whisper := NewWhisper(WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"))

	text, err := whisper.Transcribe(context.Background(),
		strings.NewReader("fake-ogg-bytes"), "voice.ogg")
	require.NoError(t, err)

	assert.Equal(t, "turn on the lights", text)
	assert.Equal(t, "/audio/transcriptions", gotPath)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "voice.ogg", gotFilename)
}

func TestWhisper_TranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "server overloaded"}}`))
	}))
	defer srv.Close()

	whisper := NewWhisper(WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"))

	_, err := whisper.Transcribe(context.Background(),
		strings.NewReader("bytes"), "voice.ogg")
	require.Error(t, err)
	assert.ErrorContains(t, err, "transcribe audio")
}

func TestWhisper_WithModel(t *testing.T) {
	whisper := NewWhisper(WithModel("whisper-large"))
	assert.Equal(t, "whisper-large", string(whisper.model))
}
