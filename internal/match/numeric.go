package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/textnorm"
)

var tokenRe = regexp.MustCompile(`\d+(?:[.,]\d+)?|[^\s\d]+`)

// knownUnits are measurement symbols a number can be bound to. A number
// followed by one of these belongs to that unit and never falls back to a
// label written before it, even when the symbol has no letters ("%", "°c").
var knownUnits = map[string]bool{
	"v": true, "vac": true, "vca": true, "vdc": true, "vcc": true, "kv": true, "mv": true,
	"a": true, "ma": true, "w": true, "kw": true, "mw": true, "wh": true, "kwh": true,
	"va": true, "hz": true, "khz": true, "mhz": true, "ghz": true,
	"lm": true, "lm/w": true, "lmw": true, "lx": true, "cd": true, "k": true,
	"mm": true, "cm": true, "m": true, "in": true, "pulgadas": true, "kg": true, "g": true, "lb": true,
	"°c": true, "°f": true, "c": true, "%": true, "h": true, "horas": true, "min": true, "s": true,
	"ms": true, "db": true, "dba": true, "ohm": true, "ω": true, "gb": true, "tb": true, "mah": true,
}

// valueQualifiers may follow a labelled value without being its unit
// ("factor de potencia 0.95 minimo").
var valueQualifiers = map[string]bool{
	"minimo": true, "minima": true, "maximo": true, "maxima": true, "tipico": true, "tipica": true,
	"nominal": true, "medido": true, "medida": true, "aprox": true, "aproximado": true,
	"minimum": true, "maximum": true, "typical": true, "typ": true, "approx": true, "measured": true,
}

type token struct {
	text  string
	pos   int
	num   bool
	value float64
}

func tokenize(folded string) []token {
	idx := tokenRe.FindAllStringIndex(folded, -1)
	toks := make([]token, 0, len(idx))
	for _, loc := range idx {
		s := folded[loc[0]:loc[1]]
		t := token{text: s, pos: loc[0]}
		if s[0] >= '0' && s[0] <= '9' {
			v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
			if err == nil {
				t.num = true
				t.value = v
			}
		}
		toks = append(toks, t)
	}
	return toks
}

// numericRule is a compiled catalog.NumericRule
type numericRule struct {
	typ   catalog.NumericType
	units []string
	bound float64
}

func compileNumeric(n *catalog.NumericRule) (*numericRule, error) {
	nr := &numericRule{typ: n.Type}
	switch n.Type {
	case catalog.NumericMin:
		if n.Min == nil {
			return nil, fmt.Errorf("min_value rule without min")
		}
		nr.bound = *n.Min
	case catalog.NumericMax:
		if n.Max == nil {
			return nil, fmt.Errorf("max_value rule without max")
		}
		nr.bound = *n.Max
	default:
		return nil, fmt.Errorf("unknown numeric rule type %q", n.Type)
	}
	for _, u := range n.UnitPatterns {
		if f := strings.TrimSpace(textnorm.Fold(u)); f != "" {
			nr.units = append(nr.units, f)
		}
	}
	if len(nr.units) == 0 {
		return nil, fmt.Errorf("numeric rule without unit patterns")
	}
	return nr, nil
}

// eval scans the folded sentence for a number whose unit matches and whose
// value satisfies the comparison. It returns the comparison detail and the
// offset of the number.
func (n *numericRule) eval(folded string) (detail string, pos int, ok bool) {
	toks := tokenize(folded)
	for i, t := range toks {
		if !t.num {
			continue
		}
		if !n.unitMatches(toks, i) || !n.compare(t.value) {
			continue
		}
		return n.detail(t.value), t.pos, true
	}
	return "", -1, false
}

// unitMatches resolves the unit of the number at i. The one or two tokens
// that follow are the candidate unit. Only when nothing unit-like follows the
// number anywhere in the sentence is the label written before the value used
// instead ("factor de potencia 0.95").
func (n *numericRule) unitMatches(toks []token, i int) bool {
	var after []string
	for j := i + 1; j < len(toks) && j <= i+2; j++ {
		after = append(after, toks[j].text)
	}
	if n.anyUnit(after) {
		return true
	}
	for _, t := range toks[i+1:] {
		if t.num {
			continue
		}
		w := trimPunct(t.text)
		if knownUnits[w] {
			return false
		}
		if hasLetter(w) && !valueQualifiers[w] {
			return false
		}
	}

	var before []string
	for j := i - 1; j >= 0 && len(before) < 2; j-- {
		if toks[j].num {
			break
		}
		if !hasLetter(toks[j].text) {
			continue
		}
		before = append([]string{toks[j].text}, before...)
	}
	return n.anyUnit(before)
}

// anyUnit reports whether a unit pattern appears as a whole word in the
// tokens, or the tokens glued together spell it ("lm w" for lmw).
func (n *numericRule) anyUnit(parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	spaced := strings.Join(parts, " ")
	joined := strings.Join(parts, "")
	for _, u := range n.units {
		if textnorm.IndexWord(spaced, u) >= 0 || trimPunct(joined) == u {
			return true
		}
	}
	return false
}

func (n *numericRule) compare(v float64) bool {
	if n.typ == catalog.NumericMax {
		return v <= n.bound
	}
	return v >= n.bound
}

func (n *numericRule) detail(v float64) string {
	op := ">="
	if n.typ == catalog.NumericMax {
		op = "<="
	}
	return fmt.Sprintf("%s %s %s", formatFloat(v), op, formatFloat(n.bound))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '%' && r != '/'
	})
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
