// Package extract turns source documents into page texts and sentences.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// Page is the text of one document page, numbered from 1
type Page struct {
	Number int
	Text   string
}

// Document is a loaded source ready for extraction
type Document struct {
	Source      string // path or URL as submitted
	Name        string // base file name
	ContentType string
	Data        []byte
}

// Ext returns the lowercased file extension of the document name
func (d *Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Name))
}

// Sniff returns the content type, detecting it from the bytes when the
// loader did not provide a usable one.
func (d *Document) Sniff() string {
	ct := strings.ToLower(d.ContentType)
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return ct
	}
	if bytes.HasPrefix(d.Data, []byte("%PDF-")) {
		return "application/pdf"
	}
	return strings.ToLower(http.DetectContentType(d.Data))
}

// Extractor turns a document into ordered page texts
type Extractor interface {
	// Name returns the extractor name
	Name() string

	// CanHandle checks if this extractor understands the document
	CanHandle(doc *Document) bool

	// Extract returns the document pages in order
	Extract(ctx context.Context, doc *Document) ([]Page, error)
}

// TextRecognizer reads text out of an image
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Registry picks an extractor for each document
type Registry struct {
	extractors []Extractor
	fallback   Extractor
}

// NewRegistry creates a registry with the built-in extractors.
// ocr may be nil, in which case images yield a single empty page.
func NewRegistry(ocr TextRecognizer, logger *slog.Logger) *Registry {
	r := &Registry{
		extractors: make([]Extractor, 0, 3),
	}

	r.Register(NewPDFExtractor())
	r.Register(NewHTMLExtractor())
	r.Register(NewImageExtractor(ocr, logger))

	// Plain text is the fallback
	r.fallback = NewTextExtractor()

	return r
}

// Register adds an extractor ahead of the fallback
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Find returns the first extractor that can handle doc
func (r *Registry) Find(doc *Document) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(doc) {
			return e
		}
	}
	return r.fallback
}

// Extract runs the matching extractor
func (r *Registry) Extract(ctx context.Context, doc *Document) ([]Page, error) {
	return r.Find(doc).Extract(ctx, doc)
}

// IsImage reports whether doc is a raster image
func IsImage(doc *Document) bool {
	switch doc.Ext() {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return strings.HasPrefix(doc.Sniff(), "image/")
}

// IsPDF reports whether doc is a PDF file
func IsPDF(doc *Document) bool {
	return doc.Ext() == ".pdf" || strings.HasPrefix(doc.Sniff(), "application/pdf")
}
