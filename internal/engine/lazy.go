// Package engine holds the process-wide inference services that are
// expensive to build. A service is built on first use and then shared
// read-only by every analysis run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BuildFunc constructs a service
type BuildFunc[T any] func(ctx context.Context) (T, error)

// Lazy builds a value once and hands the same value to every caller.
// Concurrent callers of Get wait for a single build. A failed build is not
// cached: the next call tries again.
type Lazy[T any] struct {
	mu     sync.Mutex
	name   string
	build  BuildFunc[T]
	value  T
	ready  bool
	logger *slog.Logger
}

// NewLazy creates an unbuilt service
func NewLazy[T any](name string, build BuildFunc[T], logger *slog.Logger) *Lazy[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lazy[T]{name: name, build: build, logger: logger}
}

// Init builds the service now. It is a no-op once built.
func (l *Lazy[T]) Init(ctx context.Context) error {
	_, err := l.Get(ctx)
	return err
}

// Get returns the service, building it on first use
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.value, nil
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	start := time.Now()
	v, err := l.build(ctx)
	if err != nil {
		l.logger.Warn("service init failed", "service", l.name, "error", err)
		var zero T
		return zero, fmt.Errorf("init %s: %w", l.name, err)
	}
	l.logger.Info("service ready", "service", l.name, "duration_ms", time.Since(start).Milliseconds())

	l.value = v
	l.ready = true
	return v, nil
}

// Ready reports whether the service has been built
func (l *Lazy[T]) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Peek returns the service without building it
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ready
}

// Name returns the service name used in logs
func (l *Lazy[T]) Name() string {
	return l.name
}
