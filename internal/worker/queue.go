package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KevinDz11/nopro/internal/metrics"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/pipeline"
	"github.com/KevinDz11/nopro/internal/store"
)

var (
	// ErrQueueFull is returned when no slot is free for a submission
	ErrQueueFull = errors.New("analysis queue is full")
	// ErrQueueClosed is returned for submissions after Close
	ErrQueueClosed = errors.New("analysis queue is closed")
)

// Submission is a document handed to the queue
type Submission struct {
	DocumentID string // generated when empty
	Source     string
	Category   string
	DocType    string
	Brand      string
}

type queued struct {
	sub   Submission
	runID string
}

// Queue runs analyses in the background. Submit records the document as
// queued and returns at once; callers poll the store for progress.
type Queue struct {
	analyzer Analyzer
	store    store.Store
	workers  int
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	jobs   chan queued
	wg     sync.WaitGroup
	mu     sync.Mutex // guards record transitions and closed
	closed bool
}

// NewQueue creates a queue; call Start to run the workers
func NewQueue(analyzer Analyzer, st store.Store, cfg model.ConcurrencyConfig, m *metrics.Metrics, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	return &Queue{
		analyzer: analyzer,
		store:    st,
		workers:  cfg.Workers,
		timeout:  cfg.AnalysisTimeout,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		jobs:     make(chan queued, cfg.QueueSize),
	}
}

// Start launches the workers
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("analysis queue started", "workers", q.workers, "capacity", cap(q.jobs))
}

// Submit records a document as queued and schedules its analysis. A
// document already known under the same id starts a fresh run; the
// previous report is discarded.
func (q *Queue) Submit(ctx context.Context, sub Submission) (string, error) {
	if sub.DocumentID == "" {
		sub.DocumentID = uuid.NewString()
	}
	category, _ := model.ParseCategory(sub.Category)
	docType, _ := model.ParseDocType(sub.DocType)

	rec := model.DocumentRecord{
		ID:            sub.DocumentID,
		Source:        sub.Source,
		Category:      category,
		DocType:       docType,
		ExpectedBrand: sub.Brand,
		Status:        model.StatusQueued,
		RunID:         uuid.NewString(),
		SubmittedAt:   q.now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.metrics.IncQueueRejected()
		return "", ErrQueueClosed
	}
	if len(q.jobs) == cap(q.jobs) {
		q.metrics.IncQueueRejected()
		return "", ErrQueueFull
	}
	if err := q.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("record submission: %w", err)
	}

	// never blocks: capacity was checked under the lock
	q.jobs <- queued{sub: sub, runID: rec.RunID}
	q.metrics.SetQueueDepth(len(q.jobs))
	q.logger.Info("document queued", "document", rec.ID, "run", rec.RunID, "source", rec.Source)
	return rec.ID, nil
}

// Status returns the public view of a document record
func (q *Queue) Status(ctx context.Context, id string) (model.DocumentRecord, error) {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return model.DocumentRecord{}, err
	}
	return rec.Public(), nil
}

// Close stops accepting submissions and waits for queued work to finish
// or for ctx to be done
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.metrics.SetQueueDepth(len(q.jobs))
		q.run(job)
	}
}

// run executes one analysis. Analyses are not cancelled by callers; only
// the configured timeout bounds them.
func (q *Queue) run(job queued) {
	ctx := context.Background()
	id := job.sub.DocumentID
	logger := q.logger.With("document", id, "run", job.runID)

	started := q.now().UTC()
	if !q.transition(ctx, id, job.runID, func(rec *model.DocumentRecord) {
		rec.Status = model.StatusProcessing
		rec.StartedAt = &started
	}) {
		logger.Debug("run superseded before start")
		return
	}

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	report, err := q.analyzer.Analyze(ctx, pipeline.Request{
		DocumentID: id,
		RunID:      job.runID,
		Source:     job.sub.Source,
		Category:   job.sub.Category,
		DocType:    job.sub.DocType,
		Brand:      job.sub.Brand,
	})

	finished := q.now().UTC()
	ok := q.transition(context.Background(), id, job.runID, func(rec *model.DocumentRecord) {
		rec.FinishedAt = &finished
		if err != nil {
			rec.Status = model.StatusError
			rec.Error = err.Error()
			rec.Report = nil
			return
		}
		rec.Status = model.StatusDone
		rec.Error = ""
		rec.Report = report
		rec.Category = report.Category
		rec.DocType = report.DocType
	})
	switch {
	case !ok:
		logger.Info("discarding result of superseded run")
	case err != nil:
		logger.Warn("analysis failed", "error", err)
	default:
		logger.Info("analysis stored", "compliant", report.Summary.Compliant, "standards", report.Summary.Standards)
	}
}

// transition applies fn to the stored record if it still belongs to runID
func (q *Queue) transition(ctx context.Context, id, runID string, fn func(*model.DocumentRecord)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.store.Get(ctx, id)
	if err != nil {
		q.logger.Error("document record unavailable", "document", id, "error", err)
		return false
	}
	if rec.RunID != runID {
		return false
	}
	fn(&rec)
	if err := q.store.Put(ctx, rec); err != nil {
		q.logger.Error("failed to store document record", "document", id, "error", err)
		return false
	}
	return true
}
