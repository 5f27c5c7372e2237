package visual

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/KevinDz11/nopro/internal/engine"
	"github.com/KevinDz11/nopro/internal/extract"
	"github.com/KevinDz11/nopro/internal/model"
)

// BuildFunc constructs a detector from configuration
type BuildFunc func(cfg model.VisionConfig, logger *slog.Logger) (Detector, error)

// Option configures a Service
type Option func(*Service)

// WithProvider registers a detector provider under name
func WithProvider(name string, build BuildFunc) Option {
	return func(s *Service) { s.providers[strings.ToLower(name)] = build }
}

// WithLimiter rate-limits detector calls
func WithLimiter(w Waiter) Option {
	return func(s *Service) { s.limiter = w }
}

// WithRunner sets the command runner used to render PDF pages
func WithRunner(r Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithHTTPClient sets the client used by remote providers
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// Service is the shared visual inspection engine. The detector is built on
// first use and reused by every run; Inspect is safe for concurrent use.
type Service struct {
	cfg        model.VisionConfig
	providers  map[string]BuildFunc
	limiter    Waiter
	runner     Runner
	httpClient *http.Client
	logger     *slog.Logger

	detector *engine.Lazy[Detector]
	renderer *Renderer
}

// NewService creates an unbuilt service for the configured provider
func NewService(cfg model.VisionConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		providers: make(map[string]BuildFunc),
		logger:    logger,
	}
	s.providers["openai"] = func(cfg model.VisionConfig, _ *slog.Logger) (Detector, error) {
		return NewOpenAIDetector(cfg, s.httpClient)
	}
	s.providers["remote"] = func(cfg model.VisionConfig, _ *slog.Logger) (Detector, error) {
		return NewRemoteDetector(cfg, s.httpClient)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = ExecRunner{Logger: logger}
	}

	s.renderer = NewRenderer(s.runner, cfg.Pdftoppm, cfg.DPI)
	s.detector = engine.NewLazy("detector", func(ctx context.Context) (Detector, error) {
		return s.build()
	}, logger)
	return s
}

// Init builds the detector eagerly
func (s *Service) Init(ctx context.Context) error {
	return s.detector.Init(ctx)
}

// Detector returns the shared detector, building it on first use
func (s *Service) Detector(ctx context.Context) (Detector, error) {
	return s.detector.Get(ctx)
}

// Close releases the detector if it was built. The service must not be
// used afterwards.
func (s *Service) Close() error {
	d, ok := s.detector.Peek()
	if !ok {
		return nil
	}
	return closeDetector(d)
}

// Inspect renders a label document and runs the detector on it
func (s *Service) Inspect(ctx context.Context, doc *extract.Document) (*Detection, error) {
	det, err := s.Detector(ctx)
	if err != nil {
		return nil, err
	}
	img, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %v", model.ErrDetectorUnavailable, err)
	}
	out, err := det.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrDetectorUnavailable, det.Name(), err)
	}
	if out.Detector == "" {
		out.Detector = det.Name()
	}
	return out, nil
}

func (s *Service) build() (Detector, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.Provider))

	var d Detector
	switch provider {
	case "", "none":
		return nil, fmt.Errorf("%w: no vision provider configured", model.ErrDetectorUnavailable)
	case "multi":
		children, err := s.buildAll()
		if err != nil {
			return nil, err
		}
		d = NewMultiDetector(s.logger, children...)
	default:
		build, ok := s.providers[provider]
		if !ok {
			return nil, fmt.Errorf("%w: unknown vision provider: %s (supported: %s)",
				model.ErrDetectorUnavailable, s.cfg.Provider, strings.Join(s.providerNames(), ", "))
		}
		var err error
		if d, err = s.wrap(build); err != nil {
			return nil, err
		}
	}

	s.logger.Info("vision detector configured", "provider", provider, "detector", d.Name())
	return d, nil
}

// buildAll builds every registered provider that is configured; providers
// that fail (missing key, missing endpoint) are left out.
func (s *Service) buildAll() ([]Detector, error) {
	var children []Detector
	for _, name := range s.providerNames() {
		d, err := s.wrap(s.providers[name])
		if err != nil {
			s.logger.Debug("provider skipped", "provider", name, "error", err)
			continue
		}
		children = append(children, d)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: no vision provider could be built", model.ErrDetectorUnavailable)
	}
	return children, nil
}

// wrap adds retries and rate limiting around a built detector
func (s *Service) wrap(build BuildFunc) (Detector, error) {
	d, err := build(s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if s.limiter != nil {
		d = NewLimited(d, s.limiter)
	}
	if s.cfg.MaxRetries > 1 {
		d = NewRetrying(d, s.cfg.MaxRetries, s.logger)
	}
	return d, nil
}

func (s *Service) providerNames() []string {
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
