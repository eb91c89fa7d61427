package llm

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newCaptureLogger returns a debug-level logger writing to the returned buffer.
func newCaptureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// newTestClient starts handler behind httptest and returns a Client rooted
// at <server>/api with default model llama3.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(config.OllamaConfig{
		BaseURL: server.URL + "/api",
		Model:   "llama3",
	}, newTestLogger(), opts...)
	return c, server
}

// writeChunks writes each chunk and flushes it so the client sees it as a
// separate read.
func writeChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, c := range chunks {
		w.Write([]byte(c))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

const (
	helRecord = `{"model":"m","created_at":"t","message":{"role":"assistant","content":"Hel"},"done":false}`
	loRecord  = `{"model":"m","created_at":"t","message":{"role":"assistant","content":"lo"},"done":true,"total_duration":5000000,"eval_count":2,"eval_duration":1000000000}`
)
