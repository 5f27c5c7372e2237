package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/metrics"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/pipeline"
	"github.com/KevinDz11/nopro/internal/util"
	"github.com/KevinDz11/nopro/internal/visual"
	"github.com/KevinDz11/nopro/internal/visual/tesseract"
	"github.com/KevinDz11/nopro/internal/worker"
)

// app bundles the long-lived components shared by the commands
type app struct {
	cfg      *model.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	vision   *visual.Service
	pipeline *pipeline.Pipeline
}

// newApp loads the catalog and wires the analysis pipeline. m may be nil.
func newApp(cfg *model.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	cat, err := catalog.LoadDir(cfg.Catalog.Dir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	for _, issue := range cat.Issues() {
		logger.Warn("catalog issue", "issue", issue)
	}

	limiter := newLimiter(cfg.Vision)
	vision := visual.NewService(cfg.Vision, logger,
		visual.WithProvider("tesseract", tesseract.NewDetector),
		visual.WithLimiter(limiter),
		visual.WithHTTPClient(&http.Client{
			Timeout:   cfg.Vision.Timeout,
			Transport: util.NewTransport(cfg.Source.HTTPProxy, cfg.Source.HTTPSProxy, cfg.Source.NoProxy),
		}),
	)

	opts := []pipeline.Option{
		pipeline.WithInspector(vision),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	}
	if len(cfg.Vision.OCRLanguages) > 0 {
		opts = append(opts, pipeline.WithRecognizer(tesseract.NewEngine(cfg.Vision.OCRLanguages)))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		catalog:  cat,
		vision:   vision,
		pipeline: pipeline.New(cfg, cat, opts...),
	}, nil
}

// newLimiter rate-limits remote detectors per provider. Local OCR runs
// in-process and is never throttled.
func newLimiter(cfg model.VisionConfig) *worker.Limiter {
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	limiter.SetRate("tesseract", 0, 0)
	return limiter
}

// close releases the resources held by the shared detector
func (a *app) close() {
	if err := a.vision.Close(); err != nil {
		a.logger.Warn("close visual detector", "error", err)
	}
}

// setup resolves configuration and builds the logger used by a command
func setup() (*model.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
