package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
)

func testLoader() *Loader {
	return NewLoader(model.SourceConfig{
		Timeout:   5 * time.Second,
		MaxBytes:  1 << 20,
		UserAgent: "test-agent",
	}, nil)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestLoad_URLSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Unexpected User-Agent: %s", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	doc, err := testLoader().Load(context.Background(), server.URL+"/manuales/tv%2055.html")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(doc.Data) != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", doc.Data)
	}
	if doc.Name != "tv 55.html" {
		t.Errorf("Unexpected name: %q", doc.Name)
	}
	if doc.ContentType != "text/html" {
		t.Errorf("Unexpected content type: %q", doc.ContentType)
	}
}

func TestLoad_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "ficha")
	}))
	defer server.Close()

	doc, err := testLoader().Load(context.Background(), server.URL+"/ficha.txt")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(doc.Data) != "ficha" {
		t.Errorf("Unexpected body: %s", doc.Data)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestLoad_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testLoader().Load(context.Background(), server.URL+"/missing.pdf")
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if !errors.Is(err, model.ErrUnreadableDocument) {
		t.Errorf("Expected ErrUnreadableDocument, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestLoad_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	if _, err := testLoader().Load(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestLoad_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	l := NewLoader(model.SourceConfig{Timeout: time.Second, MaxBytes: 32}, nil)
	if _, err := l.Load(context.Background(), server.URL); !errors.Is(err, model.ErrUnreadableDocument) {
		t.Errorf("Expected ErrUnreadableDocument for oversized body, got %v", err)
	}
}

func TestLoad_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Ficha Técnica.txt")
	if err := os.WriteFile(path, []byte("Tensión nominal 127 V."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := testLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if doc.Name != "Ficha Técnica.txt" || doc.Ext() != ".txt" {
		t.Errorf("Unexpected name/ext: %q %q", doc.Name, doc.Ext())
	}

	if _, err := testLoader().Load(context.Background(), filepath.Join(dir, "nope.pdf")); !errors.Is(err, model.ErrUnreadableDocument) {
		t.Errorf("Expected ErrUnreadableDocument for missing file, got %v", err)
	}
	if _, err := testLoader().Load(context.Background(), dir); !errors.Is(err, model.ErrUnreadableDocument) {
		t.Errorf("Expected ErrUnreadableDocument for directory, got %v", err)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &statusError{code: 503, status: "503 Service Unavailable"}, true},
		{"500", &statusError{code: 500, status: "500 Internal Server Error"}, true},
		{"429", &statusError{code: 429, status: "429 Too Many Requests"}, true},
		{"404", &statusError{code: 404, status: "404 Not Found"}, false},
		{"403", &statusError{code: 403, status: "403 Forbidden"}, false},
		{"wrapped 502", fmt.Errorf("fetch: %w", &statusError{code: 502, status: "502 Bad Gateway"}), true},
		{"refused", fmt.Errorf("fetch: connection refused"), true},
		{"reset", fmt.Errorf("fetch: connection reset by peer"), true},
		{"timeout", fmt.Errorf("fetch: i/o timeout"), true},
		{"bad url", fmt.Errorf("create request: invalid URL"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
