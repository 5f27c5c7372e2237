package visual

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/textnorm"
)

var (
	// trailing score some engines append to label names: "NOM-CE 0.91", "NOM (91%)"
	scoreSuffixRe = regexp.MustCompile(`\s*(\(\s*\d*\.?\d+\s*%?\s*\)|\b0?\.\d+|\b\d{1,3}\s*%)\s*$`)
	spaceRe       = regexp.MustCompile(`[\s_]+`)

	// explicit standard codes printed on labels
	nomCodeRe = regexp.MustCompile(`\bNOM-\d{3}-[A-Z0-9]+(?:/[A-Z0-9]+)?-\d{4}\b`)
	nmxCodeRe = regexp.MustCompile(`\bNMX-[A-Z]{1,2}-\d[0-9A-Z/.\-]*-[A-Z]+-\d{4}\b`)

	dashes = strings.NewReplacer("–", "-", "—", "-", "‐", "-", "‑", "-")
)

// Match explains why a standard was considered visually present
type Match struct {
	Standard   string
	Predicate  string
	Tokens     []string
	Confidence *float64 // best confidence of a label supporting the match
}

// Pattern renders the match for the evidence pattern column
func (m Match) Pattern() string {
	return fmt.Sprintf("visual: %s(%s)", m.Predicate, strings.Join(m.Tokens, ", "))
}

// Observation is a detection normalized for predicate evaluation
type Observation struct {
	Labels []Label  // canonical names, above the confidence floor
	Text   string   // folded raw context text and label names
	Codes  []string // explicit standard codes, verbatim
	Brand  string   // folded expected brand hint
	Raw    string   // raw context text as detected
}

// Canonicalizer maps detector output onto catalog standards
type Canonicalizer struct {
	cat           *catalog.Catalog
	minConfidence float64
	vocab         catalog.Vocabulary
	generic       string
	qualified     *regexp.Regexp
	labelQual     *regexp.Regexp
	patterns      map[string]*regexp.Regexp
}

// NewCanonicalizer prepares a canonicalizer for the catalog. Labels with a
// confidence below minConfidence are ignored.
func NewCanonicalizer(cat *catalog.Catalog, minConfidence float64) *Canonicalizer {
	vocab := cat.Vocabulary()
	c := &Canonicalizer{
		cat:           cat,
		minConfidence: minConfidence,
		vocab:         vocab,
		generic:       textnorm.Fold(vocab.GenericMark),
		patterns:      make(map[string]*regexp.Regexp),
	}

	quals := make([]string, 0, len(vocab.Qualifiers))
	for _, q := range vocab.Qualifiers {
		if f := textnorm.Fold(strings.TrimSpace(q)); f != "" {
			quals = append(quals, regexp.QuoteMeta(f))
		}
	}
	if len(quals) == 0 {
		quals = append(quals, "ce", "nyce", "ul", "ance")
	}
	// longest first so "nyce" is not read as a shorter qualifier
	sort.Slice(quals, func(i, j int) bool { return len(quals[i]) > len(quals[j]) })
	alt := strings.Join(quals, "|")
	g := regexp.QuoteMeta(c.generic)
	// the separator never crosses a line: each label name sits on its own
	c.qualified = regexp.MustCompile(`\b` + g + `[ \t\-_/]*(` + alt + `)\b`)
	c.labelQual = regexp.MustCompile(`(?i)^` + g + `[\s\-_/]+(` + alt + `)\b`)

	for _, category := range cat.Categories() {
		for _, std := range cat.VisualStandards(category) {
			for _, p := range cat.Predicates(category, std) {
				for _, src := range p.Patterns {
					if _, ok := c.patterns[src]; ok {
						continue
					}
					// invalid patterns are reported by the catalog and never fire
					re, err := regexp.Compile(textnorm.FoldPattern(src))
					if err != nil {
						c.patterns[src] = nil
						continue
					}
					c.patterns[src] = re
				}
			}
		}
	}
	return c
}

// NormalizeLabel canonicalizes a raw detector label name: score suffixes
// are stripped, case is upper and compound marks become "NOM-<QUALIFIER>".
func (c *Canonicalizer) NormalizeLabel(name string) string {
	n := strings.TrimSpace(dashes.Replace(name))
	n = scoreSuffixRe.ReplaceAllString(n, "")
	n = strings.ToUpper(strings.TrimSpace(spaceRe.ReplaceAllString(n, " ")))
	if m := c.labelQual.FindStringSubmatch(n); m != nil {
		n = strings.ToUpper(c.generic) + "-" + strings.ToUpper(m[1]) + n[len(m[0]):]
	}
	return n
}

// Observe normalizes a detection. A nil detection yields an empty observation.
func (c *Canonicalizer) Observe(det *Detection, expectedBrand string) Observation {
	obs := Observation{Brand: textnorm.Squash(textnorm.Fold(expectedBrand))}
	if det == nil {
		return obs
	}
	obs.Raw = det.RawContextText

	var names []string
	for _, l := range det.Labels {
		if l.Confidence < c.minConfidence {
			continue
		}
		name := c.NormalizeLabel(l.Name)
		if name == "" {
			continue
		}
		obs.Labels = append(obs.Labels, Label{Name: name, Confidence: l.Confidence, Box: l.Box})
		names = append(names, name)
	}

	// one label per line so separate labels never read as a compound mark
	joined := dashes.Replace(strings.Join(append([]string{det.RawContextText}, names...), "\n"))
	obs.Text = textnorm.Fold(joined)
	obs.Codes = explicitCodes(strings.ToUpper(textnorm.Fold(joined)))
	return obs
}

// ExplicitCodes returns the standard codes spelled out in text, in order of
// first appearance.
func ExplicitCodes(text string) []string {
	return explicitCodes(strings.ToUpper(textnorm.Fold(dashes.Replace(text))))
}

func explicitCodes(upper string) []string {
	type hit struct {
		pos  int
		code string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{nomCodeRe, nmxCodeRe} {
		for _, loc := range re.FindAllStringIndex(upper, -1) {
			hits = append(hits, hit{loc[0], upper[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool)
	var out []string
	for _, h := range hits {
		if !seen[h.code] {
			seen[h.code] = true
			out = append(out, h.code)
		}
	}
	return out
}

// Satisfies reports whether the detection visually supports a standard
func (c *Canonicalizer) Satisfies(det *Detection, category model.Category, standard, expectedBrand string) bool {
	_, ok := c.Evaluate(c.Observe(det, expectedBrand), category, standard)
	return ok
}

// Evaluate checks a standard against an observation. An explicit code wins;
// otherwise the first satisfied predicate of the standard is reported.
func (c *Canonicalizer) Evaluate(obs Observation, category model.Category, standard string) (Match, bool) {
	for _, code := range obs.Codes {
		if code == strings.ToUpper(standard) {
			return c.match(obs, standard, "explicit_code", []string{code}), true
		}
	}

	for _, p := range c.cat.Predicates(category, standard) {
		tokens := c.evalPredicate(obs, p)
		if len(tokens) > 0 {
			return c.match(obs, standard, string(p.Kind), tokens), true
		}
	}
	return Match{}, false
}

// Canonicalize returns the sorted set of standards visually present for a
// category. Explicit codes are included verbatim even when the category's
// catalog does not list them.
func (c *Canonicalizer) Canonicalize(det *Detection, category model.Category, expectedBrand string) []string {
	obs := c.Observe(det, expectedBrand)
	set := make(map[string]bool)
	for _, code := range obs.Codes {
		set[code] = true
	}
	for _, std := range c.cat.VisualStandards(category) {
		if _, ok := c.Evaluate(obs, category, std); ok {
			set[std] = true
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (c *Canonicalizer) evalPredicate(obs Observation, p catalog.Predicate) []string {
	switch p.Kind {
	case catalog.PredicateGenericMark:
		if c.hasGenericMark(obs.Text) {
			return []string{strings.ToUpper(c.generic)}
		}
	case catalog.PredicateQualifiedMark:
		return c.qualifiedMarks(obs.Text)
	case catalog.PredicateSafetySymbol:
		return findTerms(obs.Text, c.vocab.SafetySymbols)
	case catalog.PredicateRecycling:
		return findTerms(obs.Text, c.vocab.Recycling)
	case catalog.PredicateBrand:
		if obs.Brand != "" && textnorm.IndexWord(obs.Text, obs.Brand) >= 0 {
			return []string{obs.Brand}
		}
		if found := findTerms(obs.Text, c.vocab.BrandWords); len(found) > 0 {
			return found
		}
		return findTerms(obs.Text, c.vocab.Brands)
	case catalog.PredicateKeywords:
		return findTerms(obs.Text, p.Terms)
	case catalog.PredicatePatterns:
		var out []string
		for _, src := range p.Patterns {
			re := c.patterns[src]
			if re == nil {
				continue
			}
			if m := re.FindString(obs.Text); m != "" {
				out = append(out, strings.TrimSpace(m))
			}
		}
		return out
	}
	return nil
}

// hasGenericMark finds the bare mark: a whole word not glued to a code or
// a qualifier ("NOM-001-...", "NOM-CE" and "NOM CE" do not count).
func (c *Canonicalizer) hasGenericMark(text string) bool {
	from := 0
	for from < len(text) {
		i := textnorm.IndexWord(text[from:], c.generic)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(c.generic)
		from = end

		if i > 0 && strings.ContainsRune("-_/", rune(text[i-1])) {
			continue
		}
		if end < len(text) && strings.ContainsRune("-_/", rune(text[end])) {
			continue
		}
		if loc := c.qualified.FindStringIndex(text[i:]); loc != nil && loc[0] == 0 {
			continue
		}
		return true
	}
	return false
}

func (c *Canonicalizer) qualifiedMarks(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range c.qualified.FindAllStringSubmatch(text, -1) {
		tok := strings.ToUpper(c.generic) + "-" + strings.ToUpper(m[1])
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// match attaches the best confidence of a label that names one of the tokens
func (c *Canonicalizer) match(obs Observation, standard, predicate string, tokens []string) Match {
	m := Match{Standard: standard, Predicate: predicate, Tokens: tokens}
	for _, l := range obs.Labels {
		name := textnorm.Fold(l.Name)
		for _, tok := range tokens {
			if !strings.Contains(name, textnorm.Fold(tok)) {
				continue
			}
			if m.Confidence == nil || l.Confidence > *m.Confidence {
				conf := l.Confidence
				m.Confidence = &conf
			}
			break
		}
	}
	return m
}

func findTerms(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		f := textnorm.Squash(textnorm.Fold(t))
		if f != "" && textnorm.IndexWord(text, f) >= 0 {
			out = append(out, t)
		}
	}
	return out
}
