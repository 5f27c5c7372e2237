package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/KevinDz11/nopro/internal/extract"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/pipeline"
)

// Analyzer runs one document analysis
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*model.Report, error)
}

// AnalyzeJob represents one document analysis in a batch
type AnalyzeJob struct {
	Index    int
	Request  pipeline.Request
	Analyzer Analyzer
	Timeout  time.Duration
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	start := time.Now()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	report, err := j.Analyzer.Analyze(ctx, j.Request)
	return &AnalyzeResult{
		Index:    j.Index,
		Request:  j.Request,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// AnalyzeResult represents the result of an analysis job
type AnalyzeResult struct {
	Index    int
	Request  pipeline.Request
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// GetError returns the error from the analysis result
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many documents concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	timeout     time.Duration
}

// NewBatchProcessor creates a new batch processor. timeout bounds each
// analysis; zero means no limit.
func NewBatchProcessor(analyzer Analyzer, concurrency int, timeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Process analyzes every request and returns results in request order.
// Requests not started before ctx is cancelled carry ctx's error.
func (b *BatchProcessor) Process(ctx context.Context, reqs []pipeline.Request) []*AnalyzeResult {
	if len(reqs) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, req := range reqs {
		pool.Submit(&AnalyzeJob{
			Index:    i,
			Request:  req,
			Analyzer: b.analyzer,
			Timeout:  b.timeout,
		})
	}

	out := make([]*AnalyzeResult, len(reqs))
	for _, r := range pool.Wait() {
		res := r.(*AnalyzeResult)
		out[res.Index] = res
	}
	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &AnalyzeResult{Index: i, Request: reqs[i], Error: err}
		}
	}
	return out
}

// ExpandSources resolves glob patterns (with ** support) into document
// sources. URLs pass through; duplicates are dropped, first occurrence wins.
func ExpandSources(patterns []string) ([]string, error) {
	var sources []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if extract.IsURL(pattern) {
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no documents match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return sources, nil
}

// ReadSourcesFromFile reads document sources from a file (one per line)
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
