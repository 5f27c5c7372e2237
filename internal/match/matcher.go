// Package match evaluates requirement rules against document sentences.
package match

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/extract"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/textnorm"
)

// DefaultSnippetWindow is the number of words kept on each side of a hit
const DefaultSnippetWindow = 12

// Stream is a one-shot sequence of sentences in reading order
type Stream interface {
	Next() bool
	Sentence() extract.Sentence
	Err() error
}

// Options tune evidence rendering
type Options struct {
	SnippetWindow int
}

// SkippedRule is a rule left out because its configuration is unusable
type SkippedRule struct {
	RuleID   string
	Standard string
	Reason   string
}

type pattern struct {
	src string
	re  *regexp.Regexp
}

type compiledRule struct {
	rule     catalog.Rule
	core     []term
	context  []term
	patterns []pattern
	minCore  int
	minCtx   int
	numeric  *numericRule
}

// Matcher holds compiled rules. It is read-only after New and may be shared
// across goroutines.
type Matcher struct {
	rules   []compiledRule
	window  int
	skipped []SkippedRule
}

// New compiles rules. A rule that cannot be compiled is skipped and logged;
// the remaining rules are unaffected.
func New(rules []catalog.Rule, opts Options, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SnippetWindow <= 0 {
		opts.SnippetWindow = DefaultSnippetWindow
	}

	m := &Matcher{window: opts.SnippetWindow}
	for _, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			logger.Warn("skipping malformed rule", "rule", r.ID, "standard", r.Standard, "error", err)
			m.skipped = append(m.skipped, SkippedRule{RuleID: r.ID, Standard: r.Standard, Reason: err.Error()})
			continue
		}
		m.rules = append(m.rules, cr)
	}
	return m
}

func compileRule(r catalog.Rule) (compiledRule, error) {
	cr := compiledRule{
		rule:    r,
		core:    newTerms(r.CoreTerms),
		context: newTerms(r.ContextTerms),
		minCore: r.MinCoreHits,
		minCtx:  r.MinContextHits,
	}
	if cr.minCore <= 0 {
		cr.minCore = 1
	}
	if cr.minCtx < 0 {
		cr.minCtx = 0
	}

	for _, p := range r.Patterns {
		re, err := regexp.Compile(textnorm.FoldPattern(p))
		if err != nil {
			return cr, fmt.Errorf("%w: pattern %q: %v", model.ErrMalformedRule, p, err)
		}
		cr.patterns = append(cr.patterns, pattern{src: p, re: re})
	}

	if len(cr.core) == 0 && len(cr.patterns) == 0 {
		return cr, fmt.Errorf("%w: no core terms or patterns", model.ErrMalformedRule)
	}

	if r.Numeric != nil {
		n, err := compileNumeric(r.Numeric)
		if err != nil {
			return cr, fmt.Errorf("%w: %v", model.ErrMalformedRule, err)
		}
		cr.numeric = n
	}
	return cr, nil
}

// Skipped returns the rules that failed to compile
func (m *Matcher) Skipped() []SkippedRule {
	return append([]SkippedRule(nil), m.skipped...)
}

// Len returns the number of usable rules
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Match consumes the stream and returns textual evidence in reading order.
// Each rule yields at most one evidence item per page: the first sentence
// on that page that satisfies it.
func (m *Matcher) Match(stream Stream) ([]model.Evidence, error) {
	var evidence []model.Evidence
	matchedOn := make([]int, len(m.rules)) // last page a rule matched on

	for stream.Next() {
		s := stream.Sentence()
		folded := textnorm.Fold(s.Text)

		for i := range m.rules {
			if matchedOn[i] == s.Page && s.Page != 0 {
				continue
			}
			ev, ok := m.evaluate(&m.rules[i], s, folded)
			if !ok {
				continue
			}
			matchedOn[i] = s.Page
			evidence = append(evidence, ev)
		}
	}

	return evidence, stream.Err()
}

// evaluate checks one rule against one sentence
func (m *Matcher) evaluate(cr *compiledRule, s extract.Sentence, folded string) (model.Evidence, bool) {
	coreFired, first := hits(cr.core, folded)

	for _, p := range cr.patterns {
		loc := p.re.FindStringIndex(folded)
		if loc == nil {
			continue
		}
		coreFired = append(coreFired, strings.TrimSpace(folded[loc[0]:loc[1]]))
		if first < 0 || loc[0] < first {
			first = loc[0]
		}
	}
	if len(coreFired) < cr.minCore {
		return model.Evidence{}, false
	}

	ctxFired, ctxFirst := hits(cr.context, folded)
	if len(ctxFired) < cr.minCtx {
		return model.Evidence{}, false
	}
	if ctxFirst >= 0 && ctxFirst < first {
		first = ctxFirst
	}

	var numDetail string
	if cr.numeric != nil {
		detail, pos, ok := cr.numeric.eval(folded)
		if !ok {
			return model.Evidence{}, false
		}
		numDetail = detail
		if pos < first {
			first = pos
		}
	}

	return model.Evidence{
		Kind:        model.EvidenceTextual,
		Standard:    cr.rule.Standard,
		Subcategory: cr.rule.Subcategory,
		RuleID:      cr.rule.ID,
		Description: cr.rule.Description,
		Page:        s.Page,
		Snippet:     snippet(s.Text, folded, first, m.window),
		Pattern:     patternString(coreFired, ctxFired, numDetail),
		Source:      model.SourceMatcher,
	}, true
}

// patternString reports which terms fired, e.g.
// "tensión, frecuencia | ctx: nom-031 | num: 0.95 >= 0.89"
func patternString(core, ctx []string, num string) string {
	var parts []string
	if len(core) > 0 {
		parts = append(parts, strings.Join(dedupe(core), ", "))
	}
	if len(ctx) > 0 {
		parts = append(parts, "ctx: "+strings.Join(ctx, ", "))
	}
	if num != "" {
		parts = append(parts, "num: "+num)
	}
	if len(parts) == 0 {
		return "N/A"
	}
	return strings.Join(parts, " | ")
}

// snippet keeps window words on each side of the word containing the byte
// offset pos of the folded sentence. Folding preserves whitespace, so word
// indexes line up with the original text.
func snippet(original, folded string, pos, window int) string {
	words := strings.Fields(original)
	if len(strings.Fields(folded)) != len(words) {
		words = strings.Fields(folded)
	}
	if len(words) == 0 {
		return ""
	}

	idx := 0
	if pos > 0 {
		head := folded[:pos]
		idx = len(strings.Fields(head))
		if idx > 0 && !strings.HasSuffix(head, " ") && !strings.HasSuffix(head, "\t") {
			idx-- // hit starts inside the last word of head
		}
	}
	if idx >= len(words) {
		idx = len(words) - 1
	}

	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + window + 1
	if end > len(words) {
		end = len(words)
	}

	out := strings.Join(words[start:end], " ")
	if start > 0 {
		out = "... " + out
	}
	if end < len(words) {
		out += " ..."
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
