package extract

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/textnorm"
)

// Sentence is one segmented sentence with its reading-order position
type Sentence struct {
	Page  int
	Index int // position within the page, from 0
	Text  string
}

// Segmenter splits pages into sentences, skipping index pages
type Segmenter struct {
	minSentenceChars int
	minPageChars     int
	index            *IndexDetector
}

// NewSegmenter creates a segmenter from configuration
func NewSegmenter(cfg model.SegmenterConfig) *Segmenter {
	return &Segmenter{
		minSentenceChars: cfg.MinSentenceChars,
		minPageChars:     cfg.MinPageChars,
		index:            NewIndexDetector(cfg.MinIndexHits),
	}
}

// Segment returns a lazy stream over the sentences of pages. Pages are
// only split (and index-checked) as the stream reaches them.
func (s *Segmenter) Segment(ctx context.Context, pages []Page) *SentenceStream {
	return &SentenceStream{ctx: ctx, seg: s, pages: pages}
}

// SentenceStream yields (page, sentence) pairs in reading order.
// It is finite and can be consumed only once.
type SentenceStream struct {
	ctx     context.Context
	seg     *Segmenter
	pages   []Page
	next    int // next page to open
	buf     []string
	pos     int
	page    int
	cur     Sentence
	skipped []int
	err     error
}

// Next advances to the next sentence. It returns false at the end of the
// document or when the context is cancelled.
func (st *SentenceStream) Next() bool {
	if st.err != nil {
		return false
	}
	for st.pos >= len(st.buf) {
		if st.next >= len(st.pages) {
			return false
		}
		if err := st.ctx.Err(); err != nil {
			st.err = err
			return false
		}
		st.open(st.pages[st.next])
		st.next++
	}
	st.cur = Sentence{Page: st.page, Index: st.pos, Text: st.buf[st.pos]}
	st.pos++
	return true
}

func (st *SentenceStream) open(p Page) {
	st.buf = nil
	st.pos = 0
	st.page = p.Number

	if utf8.RuneCountInString(strings.TrimSpace(p.Text)) < st.seg.minPageChars {
		return
	}
	if st.seg.index.IsIndex(p.Text) {
		st.skipped = append(st.skipped, p.Number)
		return
	}
	st.buf = SplitSentences(p.Text, st.seg.minSentenceChars)
}

// Sentence returns the current sentence
func (st *SentenceStream) Sentence() Sentence {
	return st.cur
}

// Err returns the error that stopped the stream, if any
func (st *SentenceStream) Err() error {
	return st.err
}

// SkippedPages lists the index pages skipped so far
func (st *SentenceStream) SkippedPages() []int {
	return append([]int(nil), st.skipped...)
}

// abbreviations that end in a period without ending a sentence (folded)
var abbreviations = map[string]bool{
	"sr": true, "sra": true, "srta": true, "dr": true, "dra": true, "ing": true, "lic": true,
	"no": true, "num": true, "nro": true, "art": true, "fig": true, "figs": true,
	"pag": true, "pags": true, "p": true, "pp": true, "cap": true, "sec": true,
	"aprox": true, "max": true, "min": true, "vol": true, "ed": true, "ref": true,
	"av": true, "col": true, "c.p": true, "cp": true, "tel": true, "ej": true,
	"mr": true, "mrs": true, "vs": true, "approx": true, "e.g": true, "i.e": true,
	"inc": true, "ltd": true, "s.a": true, "c.v": true, "mod": true, "dim": true,
}

// SplitSentences splits text into sentences. Boundaries are sentence
// terminators followed by whitespace and a plausible sentence start, and
// paragraph breaks. Decimal points and common abbreviations never split.
// Whitespace inside each sentence is collapsed; sentences shorter than
// minChars runes are dropped.
func SplitSentences(text string, minChars int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	emit := func(s string) {
		s = textnorm.Squash(s)
		if s != "" && utf8.RuneCountInString(s) >= minChars {
			out = append(out, s)
		}
	}

	for _, para := range splitParagraphs(text) {
		runes := []rune(para)
		start := 0
		for i := 0; i < len(runes); i++ {
			if !isTerminator(runes[i]) {
				continue
			}

			// Swallow runs like "?!" or "..." and closing quotes/brackets.
			end := i + 1
			for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
				end++
			}

			if !boundaryAt(runes, start, i, end) {
				i = end - 1
				continue
			}

			emit(string(runes[start:end]))
			start = end
			i = end - 1
		}
		if start < len(runes) {
			emit(string(runes[start:]))
		}
	}

	return out
}

// boundaryAt decides whether the terminator at i (run ending at end) closes
// the sentence that began at start.
func boundaryAt(runes []rune, start, i, end int) bool {
	// Must be followed by whitespace or the end of the paragraph.
	if end < len(runes) && !unicode.IsSpace(runes[end]) {
		return false
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}

	if runes[i] == '.' && end == i+1 {
		word := strings.ToLower(textnorm.Fold(lastWord(runes[start:i])))
		if abbreviations[word] {
			return false
		}
	}

	return isSentenceStart(runes[next])
}

func lastWord(runes []rune) string {
	j := len(runes)
	for j > 0 && !unicode.IsSpace(runes[j-1]) && runes[j-1] != '(' {
		j--
	}
	return string(runes[j:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

// isSentenceStart accepts capitals, digits, Spanish openers and quotes
func isSentenceStart(r rune) bool {
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '¿', '¡', '"', '«', '“', '(', '[', '-', '•', '*':
		return true
	}
	return false
}

// splitParagraphs splits on blank lines
func splitParagraphs(text string) []string {
	var paras []string
	var cur strings.Builder
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if cur.Len() > 0 && !blank {
				paras = append(paras, cur.String())
				cur.Reset()
			}
			blank = true
			continue
		}
		blank = false
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return paras
}
