// Package pipeline runs the complete analysis of one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/extract"
	"github.com/KevinDz11/nopro/internal/labs"
	"github.com/KevinDz11/nopro/internal/match"
	"github.com/KevinDz11/nopro/internal/metrics"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/report"
	"github.com/KevinDz11/nopro/internal/resolve"
	"github.com/KevinDz11/nopro/internal/textnorm"
	"github.com/KevinDz11/nopro/internal/visual"
)

// Inspector produces the visual detection of a label document
type Inspector interface {
	Inspect(ctx context.Context, doc *extract.Document) (*visual.Detection, error)
}

// Request describes one document to analyze. Category and DocType are
// free-form and normalised by the pipeline.
type Request struct {
	DocumentID string
	RunID      string
	Source     string // local path or http(s) URL
	Category   string
	DocType    string
	Brand      string // optional expected brand
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithInspector sets the visual inspector used for labels
func WithInspector(i Inspector) Option {
	return func(p *Pipeline) { p.inspector = i }
}

// WithRecognizer enables OCR of image documents during text extraction
func WithRecognizer(r extract.TextRecognizer) Option {
	return func(p *Pipeline) { p.ocr = r }
}

// WithLabs sets the laboratory directory used for recommendations
func WithLabs(d *labs.Directory) Option {
	return func(p *Pipeline) { p.labs = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

type matcherKey struct {
	cat model.Category
	doc model.DocType
}

// Pipeline orchestrates load, extraction, matching, visual inspection,
// resolution and assembly. Every component it holds is read-only after
// construction, so one Pipeline serves concurrent analyses.
type Pipeline struct {
	cfg       *model.Config
	cat       *catalog.Catalog
	loader    *extract.Loader
	registry  *extract.Registry
	segmenter *extract.Segmenter
	inspector Inspector
	ocr       extract.TextRecognizer
	resolver  *resolve.Resolver
	assembler *report.Assembler
	labs      *labs.Directory
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	matchers map[matcherKey]*match.Matcher
}

// New creates a pipeline over a loaded catalog
func New(cfg *model.Config, cat *catalog.Catalog, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	p := &Pipeline{
		cfg:      cfg,
		cat:      cat,
		logger:   slog.Default(),
		matchers: make(map[matcherKey]*match.Matcher),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.loader = extract.NewLoader(cfg.Source, p.logger)
	p.registry = extract.NewRegistry(p.ocr, p.logger)
	p.segmenter = extract.NewSegmenter(cfg.Segmenter)
	p.resolver = resolve.New(cat, visual.NewCanonicalizer(cat, cfg.Vision.MinConfidence), p.logger)
	p.assembler = report.NewAssembler()

	if p.inspector == nil {
		p.inspector = visual.NewService(cfg.Vision, p.logger)
	}
	if p.labs == nil && cfg.Labs.Enabled {
		d, err := labs.Default()
		if err != nil {
			p.logger.Warn("laboratory directory unavailable", "error", err)
		}
		p.labs = d
	}
	return p
}

// Analyze runs one document end to end. An unreadable document fails the
// run with model.ErrUnreadableDocument and no report; every other problem
// is reported as a signal on the returned report.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*model.Report, error) {
	start := time.Now()
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	logger := p.logger.With("document", req.DocumentID, "run", req.RunID)

	// 1. Normalise category and type; unknown values fall back with a warning
	category, docType, signals := p.normalise(logger, req)

	// 2. Load
	doc, err := p.loader.Load(ctx, req.Source)
	if err != nil {
		p.metrics.ObserveAnalysis(string(category), string(docType), outcome(err), start)
		return nil, fmt.Errorf("load: %w", err)
	}

	// 3. Extract page texts
	pages, err := p.registry.Extract(ctx, doc)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, model.ErrUnreadableDocument) {
			err = fmt.Errorf("%w: %v", model.ErrUnreadableDocument, err)
		}
		p.metrics.ObserveAnalysis(string(category), string(docType), outcome(err), start)
		return nil, fmt.Errorf("extract: %w", err)
	}
	logger.Debug("document extracted", "name", doc.Name, "pages", len(pages))

	// 4. Textual and visual evidence are gathered concurrently
	matcher := p.matcherFor(category, docType)
	var (
		textual   []model.Evidence
		skipped   []int
		detection *visual.Detection
		detErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stream := p.segmenter.Segment(gctx, pages)
		ev, err := matcher.Match(stream)
		if err != nil {
			return fmt.Errorf("match: %w", err)
		}
		textual = ev
		skipped = stream.SkippedPages()
		return nil
	})
	if docType.Visual() {
		g.Go(func() error {
			detection, detErr = p.inspector.Inspect(gctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.ObserveAnalysis(string(category), string(docType), outcome(err), start)
		return nil, err
	}
	if detErr != nil {
		logger.Warn("visual detection unavailable", "error", detErr)
		p.metrics.IncDetectorFailure()
	}

	for _, s := range matcher.Skipped() {
		signals = append(signals, model.Signal{
			Type:        model.SignalMalformedRule,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Rule %s for %s was skipped", s.RuleID, s.Standard),
			Data:        map[string]interface{}{"rule": s.RuleID, "standard": s.Standard, "reason": s.Reason},
		})
	}
	if len(skipped) > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalIndexPagesSkipped,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d index page(s) excluded from matching", len(skipped)),
			Data:        map[string]interface{}{"pages": skipped},
		})
	}

	// 5. Resolve
	res := p.resolver.Resolve(resolve.Input{
		Category:      category,
		DocType:       docType,
		Textual:       textual,
		Detection:     detection,
		DetectorErr:   detErr,
		ExpectedBrand: req.Brand,
		BrandInText:   !docType.Visual() && brandInPages(pages, req.Brand),
	})

	// 6. Assemble
	r := p.assembler.Assemble(report.Meta{
		DocumentID:    req.DocumentID,
		RunID:         req.RunID,
		Source:        req.Source,
		Category:      category,
		DocType:       docType,
		ExpectedBrand: req.Brand,
		Pages:         len(pages),
		SkippedPages:  skipped,
	}, res, signals...)

	// 7. Laboratory recommendations never affect the checklist
	if p.cfg.Labs.Enabled && p.labs != nil {
		r.Labs = p.labs.Recommend(category, labs.Compliant(r.Checklist), p.cfg.Labs.Limit)
	}

	p.metrics.ObserveAnalysis(string(category), string(docType), metrics.OutcomeDone, start)
	p.metrics.AddEvidence(r.Summary.Textual, r.Summary.Visual)
	logger.Info("analysis complete",
		"category", category,
		"doc_type", docType,
		"standards", r.Summary.Standards,
		"compliant", r.Summary.Compliant,
		"duration", time.Since(start).Round(time.Millisecond))
	return r, nil
}

func (p *Pipeline) normalise(logger *slog.Logger, req Request) (model.Category, model.DocType, []model.Signal) {
	var signals []model.Signal

	category, err := model.ParseCategory(req.Category)
	if err != nil {
		logger.Warn("unknown category, using fallback", "category", req.Category, "fallback", category)
		signals = append(signals, model.Signal{
			Type:        model.SignalUnknownCategory,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Unknown category %q analyzed as %s", req.Category, category),
			Data:        map[string]interface{}{"raw": req.Category, "fallback": string(category)},
		})
	}

	docType, err := model.ParseDocType(req.DocType)
	if err != nil {
		logger.Warn("unknown document type, using fallback", "doc_type", req.DocType, "fallback", docType)
		signals = append(signals, model.Signal{
			Type:        model.SignalUnknownDocType,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Unknown document type %q analyzed as %s", req.DocType, docType),
			Data:        map[string]interface{}{"raw": req.DocType, "fallback": string(docType)},
		})
	}
	return category, docType, signals
}

// matcherFor returns the compiled rules of a (category, type) pair,
// compiling them on first use
func (p *Pipeline) matcherFor(cat model.Category, doc model.DocType) *match.Matcher {
	key := matcherKey{cat, doc}

	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.matchers[key]; ok {
		return m
	}
	m := match.New(p.cat.Rules(cat, doc), match.Options{SnippetWindow: p.cfg.Matcher.SnippetWindow}, p.logger)
	p.matchers[key] = m
	return m
}

func brandInPages(pages []extract.Page, brand string) bool {
	b := textnorm.Squash(textnorm.Fold(brand))
	if b == "" {
		return false
	}
	for _, pg := range pages {
		if textnorm.IndexWord(textnorm.Squash(textnorm.Fold(pg.Text)), b) >= 0 {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	if errors.Is(err, model.ErrUnreadableDocument) {
		return metrics.OutcomeUnreadable
	}
	return metrics.OutcomeError
}

// Describe renders a one-line description of a request for progress output
func Describe(req Request) string {
	parts := []string{req.Source}
	if req.Category != "" {
		parts = append(parts, req.Category)
	}
	if req.DocType != "" {
		parts = append(parts, req.DocType)
	}
	return strings.Join(parts, " · ")
}
