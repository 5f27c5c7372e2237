package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/KevinDz11/nopro/internal/model"
	"golang.org/x/net/html"
)

// HTMLExtractor reads the visible text of HTML manuals as a single page
type HTMLExtractor struct{}

// NewHTMLExtractor creates a new HTML extractor
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Name() string { return "html" }

func (e *HTMLExtractor) CanHandle(doc *Document) bool {
	switch doc.Ext() {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.HasPrefix(doc.Sniff(), "text/html")
}

func (e *HTMLExtractor) Extract(ctx context.Context, doc *Document) ([]Page, error) {
	root, err := html.Parse(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse html: %v", model.ErrUnreadableDocument, doc.Name, err)
	}
	return []Page{{Number: 1, Text: extractVisibleText(root)}}, nil
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block elements end with a newline so paragraphs stay apart.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "br", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "table", "ul", "ol", "header", "footer":
		return true
	}
	return false
}
