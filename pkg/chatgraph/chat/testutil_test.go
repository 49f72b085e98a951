package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph/config"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/llm"
)

// stubModel replies with a fixed answer and records every request.
type stubModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (m *stubModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	reply := m.reply
	if reply == "" {
		reply = fmt.Sprintf("reply %d", len(m.requests))
	}
	return &llm.CompletionResponse{Content: reply}, nil
}

func (m *stubModel) lastRequest() llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func (m *stubModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// stubMedia serves fixed bytes per media ID.
type stubMedia struct {
	files map[string][]byte
	err   error
}

func (m *stubMedia) FetchMedia(_ context.Context, mediaID string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.files[mediaID]
	if !ok {
		return nil, fmt.Errorf("media %s not found", mediaID)
	}
	return data, nil
}

// stubTranscriber returns a fixed transcript and remembers the filename hint.
type stubTranscriber struct {
	transcript string
	err        error
	filename   string
}

func (t *stubTranscriber) Transcribe(_ context.Context, r io.Reader, filename string) (string, error) {
	t.filename = filename
	if t.err != nil {
		return "", t.err
	}
	io.Copy(io.Discard, r)
	return t.transcript, nil
}

// stubSender records deliveries.
type stubSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

type sentMessage struct {
	to   string
	body string
}

func (s *stubSender) Send(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{to: to, body: body})
	return nil
}

func (s *stubSender) deliveries() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

// testDeps bundles fresh stubs for one test.
type testDeps struct {
	model       *stubModel
	media       *stubMedia
	transcriber *stubTranscriber
	sender      *stubSender
}

func newTestDeps() *testDeps {
	return &testDeps{
		model:       &stubModel{},
		media:       &stubMedia{files: map[string][]byte{}},
		transcriber: &stubTranscriber{transcript: "hello from audio"},
		sender:      &stubSender{},
	}
}

func (d *testDeps) deps() Deps {
	return Deps{
		Model:       d.model,
		Media:       d.media,
		Transcriber: d.transcriber,
		Sender:      d.sender,
	}
}

func testSettings() config.Settings {
	return config.Settings{}.Normalize()
}
