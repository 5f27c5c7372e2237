package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of PDF documents
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) CanHandle(doc *Document) bool {
	return IsPDF(doc)
}

// Extract returns one Page per PDF page. Pages whose text cannot be decoded
// are kept as empty pages so numbering stays aligned with the source.
// Encrypted or corrupt files fail with model.ErrUnreadableDocument.
func (e *PDFExtractor) Extract(ctx context.Context, doc *Document) (pages []Page, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: corrupt pdf: %v", model.ErrUnreadableDocument, doc.Name, r)
		}
	}()

	if !bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: %s: missing pdf header", model.ErrUnreadableDocument, doc.Name)
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: open pdf: %v", model.ErrUnreadableDocument, doc.Name, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: %s: pdf has no pages", model.ErrUnreadableDocument, doc.Name)
	}

	pages = make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}
