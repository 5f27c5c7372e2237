package extract

import (
	"context"
	"log/slog"
)

// ImageExtractor turns a label photo into a single page. The page text is
// whatever the OCR engine reads, or empty when none is configured.
type ImageExtractor struct {
	ocr    TextRecognizer
	logger *slog.Logger
}

// NewImageExtractor creates an image extractor; ocr may be nil
func NewImageExtractor(ocr TextRecognizer, logger *slog.Logger) *ImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{ocr: ocr, logger: logger}
}

func (e *ImageExtractor) Name() string { return "image" }

func (e *ImageExtractor) CanHandle(doc *Document) bool {
	return IsImage(doc)
}

func (e *ImageExtractor) Extract(ctx context.Context, doc *Document) ([]Page, error) {
	if e.ocr == nil {
		return []Page{{Number: 1}}, nil
	}
	text, err := e.ocr.Recognize(ctx, doc.Data)
	if err != nil {
		// The visual pipeline still runs on the image itself.
		e.logger.Warn("ocr failed, continuing with empty page text", "document", doc.Name, "error", err)
		return []Page{{Number: 1}}, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
