// Package tesseract provides OCR through libtesseract. It lives in its own
// package so that only binaries importing it need cgo.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/visual"
	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages are used when none are configured
var DefaultLanguages = []string{"spa", "eng"}

// Engine recognizes text in images. Each call uses its own client, so an
// Engine is safe for concurrent use.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewEngine creates an engine for the given tesseract languages
func NewEngine(languages []string) *Engine {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

// Recognize returns the plain text of an image
func (e *Engine) Recognize(ctx context.Context, img []byte) (string, error) {
	c := e.clientFactory()
	defer c.Close()
	return recognize(ctx, c, e.languages, img)
}

func recognize(ctx context.Context, c *gosseract.Client, languages []string, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Detector reports label text only; it never produces labels. It keeps
// one client for its lifetime, so calls must be serialized.
type Detector struct {
	once      sync.Once
	client    *gosseract.Client
	languages []string
}

// NewDetector is a visual.BuildFunc for the "tesseract" provider
func NewDetector(cfg model.VisionConfig, logger *slog.Logger) (visual.Detector, error) {
	langs := cfg.OCRLanguages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	if logger != nil {
		logger.Debug("tesseract detector", "languages", strings.Join(langs, "+"), "version", gosseract.Version())
	}
	return visual.NewSerialized(&Detector{languages: langs}), nil
}

func (d *Detector) Name() string { return "tesseract" }

// Detect runs OCR over the whole image
func (d *Detector) Detect(ctx context.Context, img visual.Image) (*visual.Detection, error) {
	d.once.Do(func() { d.client = gosseract.NewClient() })

	text, err := recognize(ctx, d.client, d.languages, img.Data)
	if err != nil {
		return nil, err
	}
	return &visual.Detection{RawContextText: text, Detector: d.Name()}, nil
}

// Close releases the tesseract client
func (d *Detector) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
