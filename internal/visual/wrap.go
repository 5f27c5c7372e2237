package visual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MultiDetector fans an image out to several detectors and merges their
// output: the best confidence per label, and texts joined in child order.
// It fails only when every child fails.
type MultiDetector struct {
	children []Detector
	logger   *slog.Logger
}

// NewMultiDetector combines detectors
func NewMultiDetector(logger *slog.Logger, children ...Detector) *MultiDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiDetector{children: children, logger: logger}
}

func (m *MultiDetector) Name() string {
	names := make([]string, 0, len(m.children))
	for _, c := range m.children {
		names = append(names, c.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Close closes every child that holds resources
func (m *MultiDetector) Close() error {
	var errs []error
	for _, c := range m.children {
		if err := closeDetector(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiDetector) Detect(ctx context.Context, img Image) (*Detection, error) {
	if len(m.children) == 0 {
		return nil, fmt.Errorf("no detectors configured")
	}

	results := make([]*Detection, len(m.children))
	errs := make([]error, len(m.children))

	// Children never return errors to the group; one failure must not
	// cancel the others.
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range m.children {
		g.Go(func() error {
			det, err := child.Detect(gctx, img)
			if err != nil {
				m.logger.Warn("detector failed", "detector", child.Name(), "error", err)
				errs[i] = fmt.Errorf("%s: %w", child.Name(), err)
				return nil
			}
			results[i] = det
			return nil
		})
	}
	_ = g.Wait()

	best := make(map[string]Label)
	var order []string
	var texts []string
	ok := 0
	for _, det := range results {
		if det == nil {
			continue
		}
		ok++
		if t := strings.TrimSpace(det.RawContextText); t != "" {
			texts = append(texts, t)
		}
		for _, l := range det.Labels {
			key := strings.ToUpper(strings.TrimSpace(l.Name))
			prev, seen := best[key]
			if !seen {
				order = append(order, key)
			}
			if !seen || l.Confidence > prev.Confidence {
				best[key] = l
			}
		}
	}
	if ok == 0 {
		return nil, errors.Join(errs...)
	}

	labels := make([]Label, 0, len(order))
	for _, k := range order {
		labels = append(labels, best[k])
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Confidence > labels[j].Confidence })

	return &Detection{
		Labels:         labels,
		RawContextText: strings.Join(texts, "\n"),
		Detector:       m.Name(),
	}, nil
}

// Serialized guards a detector whose engine is not safe for concurrent
// use. Only the detector call is serialized.
type Serialized struct {
	mu    sync.Mutex
	inner Detector
}

// NewSerialized wraps d with a mutex
func NewSerialized(d Detector) *Serialized {
	return &Serialized{inner: d}
}

func (s *Serialized) Name() string { return s.inner.Name() }

func (s *Serialized) Detect(ctx context.Context, img Image) (*Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Detect(ctx, img)
}

// Close waits for the running call and closes the wrapped detector
func (s *Serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closeDetector(s.inner)
}

// Waiter blocks until a call for key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Limited rate-limits calls to a detector
type Limited struct {
	inner   Detector
	limiter Waiter
}

// NewLimited wraps d; calls are keyed by detector name
func NewLimited(d Detector, limiter Waiter) *Limited {
	return &Limited{inner: d, limiter: limiter}
}

func (l *Limited) Name() string { return l.inner.Name() }

func (l *Limited) Detect(ctx context.Context, img Image) (*Detection, error) {
	if err := l.limiter.Wait(ctx, l.inner.Name()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return l.inner.Detect(ctx, img)
}

func (l *Limited) Close() error { return closeDetector(l.inner) }

// retrySleepFunc is the sleep function used between retries (injectable for tests)
var retrySleepFunc = time.Sleep

// Retrying retries transient detector failures with exponential backoff
type Retrying struct {
	inner    Detector
	attempts int
	logger   *slog.Logger
}

// NewRetrying wraps d; attempts <= 1 disables retries
func NewRetrying(d Detector, attempts int, logger *slog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: d, attempts: attempts, logger: logger}
}

func (r *Retrying) Name() string { return r.inner.Name() }

func (r *Retrying) Close() error { return closeDetector(r.inner) }

func (r *Retrying) Detect(ctx context.Context, img Image) (*Detection, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		det, err := r.inner.Detect(ctx, img)
		if err == nil {
			return det, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < r.attempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			r.logger.Debug("retrying detector", "detector", r.inner.Name(), "attempt", attempt+1, "backoff", backoff, "error", err)
			retrySleepFunc(backoff)
		}
	}
	return nil, lastErr
}

// isRetryable returns true for 5xx, 429 and transient network errors
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, code := range []string{"(429)", "(500)", "(502)", "(503)", "(504)", "status code: 429", "status code: 5"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// closeDetector releases d when it holds resources
func closeDetector(d Detector) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
