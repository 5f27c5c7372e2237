package extract

import (
	"regexp"
	"strings"

	"github.com/KevinDz11/nopro/internal/textnorm"
)

// Heuristics for table-of-contents pages. Patterns run on folded text.
var (
	indexHeadingRe = regexp.MustCompile(`^\s*(indice( general)?|contenido|tabla de contenidos?|contents|table of contents)\s*:?\s*$`)
	pageStartRe    = regexp.MustCompile(`^\s*(indice( general)?|contenido|tabla de contenidos?|contents|table of contents)\b`)
	dottedLeaderRe = regexp.MustCompile(`(\.\s?){4,}\s*\d{1,4}\b|…{2,}\s*\d{1,4}\b`)
	chapterRe      = regexp.MustCompile(`\b(capitulo|seccion|apartado|chapter|section)\s+\d+`)
	trailingPageRe = regexp.MustCompile(`\D\s+\d{1,4}\s*$`)
)

// IndexDetector recognizes contents/index pages so their cross-reference
// listings do not produce evidence.
type IndexDetector struct {
	minHits int
}

// NewIndexDetector creates a detector; minHits <= 0 means 2
func NewIndexDetector(minHits int) *IndexDetector {
	if minHits <= 0 {
		minHits = 2
	}
	return &IndexDetector{minHits: minHits}
}

// Hits returns how many heuristics the page text satisfies
func (d *IndexDetector) Hits(text string) int {
	folded := textnorm.Fold(text)
	hits := 0

	if hasIndexHeading(folded) {
		hits++
	}
	if len(dottedLeaderRe.FindAllStringIndex(folded, -1)) >= 3 {
		hits++
	}
	if len(chapterRe.FindAllStringIndex(folded, -1)) >= 3 {
		hits++
	}
	if pageNumberedLines(folded) {
		hits++
	}

	return hits
}

// IsIndex reports whether the page reaches the configured hit threshold
func (d *IndexDetector) IsIndex(text string) bool {
	return d.Hits(text) >= d.minHits
}

func hasIndexHeading(folded string) bool {
	if pageStartRe.MatchString(folded) {
		return true
	}
	for _, line := range strings.Split(folded, "\n") {
		if len(line) <= 60 && indexHeadingRe.MatchString(line) {
			return true
		}
	}
	return false
}

// pageNumberedLines is true when at least 60% of five or more non-empty
// lines end in a page number.
func pageNumberedLines(folded string) bool {
	var total, numbered int
	for _, line := range strings.Split(folded, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if trailingPageRe.MatchString(line) {
			numbered++
		}
	}
	return total >= 5 && numbered*10 >= total*6
}
