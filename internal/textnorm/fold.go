// Package textnorm folds text for case- and diacritic-insensitive matching.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks ("Tensión" -> "tension").
// Folding never adds or removes whitespace, so word positions survive.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// FoldPattern folds a regular expression source. Escaped characters are
// copied untouched so classes like \S or \D keep their meaning.
func FoldPattern(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' && i+1 < len(p) {
			end := i + 2
			if (p[i+1] == 'p' || p[i+1] == 'P') && end < len(p) && p[end] == '{' {
				if k := strings.IndexByte(p[end:], '}'); k >= 0 {
					end += k + 1
				}
			}
			b.WriteString(p[i:end])
			i = end - 1
			continue
		}
		j := i
		for j < len(p) && p[j] != '\\' {
			j++
		}
		b.WriteString(Fold(p[i:j]))
		i = j - 1
	}
	return b.String()
}

// Words splits folded text into whitespace separated words.
func Words(s string) []string {
	return strings.Fields(Fold(s))
}

// Squash collapses runs of whitespace into single spaces.
func Squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IndexWord returns the byte offset of the first whole-word occurrence of
// the folded term in folded text, or -1. Edges of term that are not letters
// or digits need no boundary, so "°c" still matches right after a number.
func IndexWord(text, term string) int {
	if term == "" {
		return -1
	}
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	checkLeft := IsWordRune(first)
	checkRight := IsWordRune(last)

	from := 0
	for from <= len(text) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(term)

		ok := true
		if checkLeft && i > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:i])
			ok = !IsWordRune(r)
		}
		if ok && checkRight && end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			ok = !IsWordRune(r)
		}
		if ok {
			return i
		}

		_, size := utf8.DecodeRuneInString(text[i:])
		from = i + size
	}
	return -1
}

// IsWordRune reports whether r is a letter or a digit
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
