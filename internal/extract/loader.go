package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/util"
)

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

const fetchMaxRetries = 3

// Loader resolves a document handle (local path or http(s) URL) to bytes
type Loader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	logger     *slog.Logger
}

// NewLoader creates a Loader from the source configuration
func NewLoader(cfg model.SourceConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = model.DefaultConfig().Source.MaxBytes
	}
	return &Loader{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		logger:    logger,
	}
}

// Load reads the document behind handle. Every failure is an
// ErrUnreadableDocument: the run cannot proceed without the bytes.
func (l *Loader) Load(ctx context.Context, handle string) (*Document, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: empty document handle", model.ErrUnreadableDocument)
	}

	if IsURL(handle) {
		doc, err := l.fetchWithRetry(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrUnreadableDocument, handle, err)
		}
		return doc, nil
	}

	p := strings.TrimPrefix(handle, "file://")
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnreadableDocument, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", model.ErrUnreadableDocument, p)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", model.ErrUnreadableDocument, p, l.maxBytes)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnreadableDocument, err)
	}

	return &Document{
		Source: handle,
		Name:   filepath.Base(p),
		Data:   data,
	}, nil
}

// IsURL reports whether handle should be fetched over HTTP
func IsURL(handle string) bool {
	lower := strings.ToLower(handle)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fetchWithRetry retries transient failures with exponential backoff
func (l *Loader) fetchWithRetry(ctx context.Context, rawURL string) (*Document, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		doc, err := l.fetch(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			l.logger.Debug("retrying document fetch", "url", rawURL, "attempt", attempt+1, "backoff", backoff, "error", err)
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,image/*;q=0.9,*/*;q=0.8")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	// One extra byte tells a truncated body apart from an exact fit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", l.maxBytes)
	}

	finalURL := resp.Request.URL.String()
	return &Document{
		Source:      rawURL,
		Name:        documentName(finalURL),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        body,
	}, nil
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.status)
}

// isRetryableFetchError returns true for 5xx, 429 and transient network errors
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// documentName extracts the file name from the final URL
func documentName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(strings.Trim(parsed.Path, "/"))
	if name == "." || name == "" {
		return parsed.Host
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
