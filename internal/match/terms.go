package match

import "github.com/KevinDz11/nopro/internal/textnorm"

// term is a lexical item matched on whole-word boundaries
type term struct {
	raw    string // as written in the rule, used in pattern strings
	folded string
}

func newTerms(raw []string) []term {
	out := make([]term, 0, len(raw))
	for _, r := range raw {
		f := textnorm.Squash(textnorm.Fold(r))
		if f == "" {
			continue
		}
		out = append(out, term{raw: r, folded: f})
	}
	return out
}

// find returns the byte offset of the first whole-word occurrence of t in
// the folded sentence, or -1.
func (t term) find(sentence string) int {
	return textnorm.IndexWord(sentence, t.folded)
}

// hits counts terms present in the sentence, returning the ones that fired
// and the earliest offset among them (-1 when none).
func hits(terms []term, sentence string) (fired []string, first int) {
	first = -1
	for _, t := range terms {
		pos := t.find(sentence)
		if pos < 0 {
			continue
		}
		fired = append(fired, t.raw)
		if first < 0 || pos < first {
			first = pos
		}
	}
	return fired, first
}
