package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KevinDz11/nopro/internal/model"
)

// TextExtractor reads plain text; form feeds separate pages
type TextExtractor struct{}

// NewTextExtractor creates a new plain-text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Name() string { return "text" }

func (e *TextExtractor) CanHandle(doc *Document) bool {
	return strings.HasPrefix(doc.Sniff(), "text/")
}

func (e *TextExtractor) Extract(ctx context.Context, doc *Document) ([]Page, error) {
	if !utf8.Valid(doc.Data) {
		return nil, fmt.Errorf("%w: %s: not utf-8 text", model.ErrUnreadableDocument, doc.Name)
	}

	parts := strings.Split(string(doc.Data), "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages, nil
}
