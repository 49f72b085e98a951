package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds run_id, node_id, and attempt", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "run-123", "generate", 2)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "run-123", record["run_id"])
		assert.Equal(t, "generate", record["node_id"])
		assert.Equal(t, float64(2), record["attempt"]) // JSON decodes ints as float64
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "run-123", "generate", 1))
	})
}

func TestLogRunStart(t *testing.T) {
	t.Run("logs run_id and thread_key at INFO level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogRunStart(logger, "run-456", "whatsapp:15550001")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "graph run starting", record["msg"])
		assert.Equal(t, "run-456", record["run_id"])
		assert.Equal(t, "whatsapp:15550001", record["thread_key"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogRunStart(nil, "run-123", "")
		})
	})
}

func TestLogRunComplete(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogRunComplete(logger, "run-789", 123.5, 5)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "graph run completed", record["msg"])
	assert.Equal(t, "run-789", record["run_id"])
	assert.Equal(t, 123.5, record["duration_ms"])
	assert.Equal(t, float64(5), record["nodes_executed"])
}

func TestLogRunError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)
	testErr := errors.New("connection failed")

	LogRunError(logger, "run-err", testErr, 50.0, "dispatch")

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "graph run failed", record["msg"])
	assert.Equal(t, "connection failed", record["error"])
	assert.Equal(t, "dispatch", record["last_node"])
}

func TestLogNodeLifecycle(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogNodeStart(logger, "generate")
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "node starting", record["msg"])

	LogNodeComplete(logger, "generate", 42.0)
	record = h.getLastRecord()
	assert.Equal(t, "node completed", record["msg"])
	assert.Equal(t, 42.0, record["duration_ms"])

	LogNodeError(logger, "generate", errors.New("boom"))
	record = h.getLastRecord()
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "boom", record["error"])
}

func TestLogCheckpoint(t *testing.T) {
	t.Run("logs thread and size at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCheckpoint(logger, "whatsapp:15550001", "generate", 1024)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "checkpoint saved", record["msg"])
		assert.Equal(t, "whatsapp:15550001", record["thread_key"])
		assert.Equal(t, "generate", record["node_id"])
		assert.Equal(t, float64(1024), record["size_bytes"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogCheckpoint(nil, "t", "n", 0)
		})
	})
}

func TestLogCheckpointError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogCheckpointError(logger, "generate", "save", errors.New("db down"))

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "checkpoint failed", record["msg"])
	assert.Equal(t, "save", record["operation"])
	assert.Equal(t, "db down", record["error"])
}

func TestTimedOperation(t *testing.T) {
	elapsed := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, elapsed(), float64(5))
}
