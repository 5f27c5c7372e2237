package catalog

import "github.com/KevinDz11/nopro/internal/model"

// Standard is one catalog entry: a regulatory standard evaluated for a category
type Standard struct {
	ID               string          `yaml:"id" json:"id"`
	Name             string          `yaml:"name" json:"name"`
	Description      string          `yaml:"description" json:"description"`
	Applicable       []model.DocType `yaml:"applicable" json:"applicable"`
	ExpectedEvidence []string        `yaml:"expected_evidence" json:"expected_evidence"`
}

// AppliesTo reports whether the standard declares the document type
func (s Standard) AppliesTo(doc model.DocType) bool {
	for _, d := range s.Applicable {
		if d == doc {
			return true
		}
	}
	return false
}

// Entry is a standard selected for a (category, document type) pair.
// Forced entries are label-only inclusions outside declared applicability.
type Entry struct {
	Standard
	Forced bool
}

// Rule is a textual requirement evaluated against sentences
type Rule struct {
	ID             string       `yaml:"id" json:"id"`
	Description    string       `yaml:"description" json:"description"`
	CoreTerms      []string     `yaml:"core_terms" json:"core_terms,omitempty"`
	ContextTerms   []string     `yaml:"context_terms" json:"context_terms,omitempty"`
	Patterns       []string     `yaml:"patterns" json:"patterns,omitempty"`
	MinCoreHits    int          `yaml:"min_core_hits" json:"min_core_hits,omitempty"`
	MinContextHits int          `yaml:"min_context_hits" json:"min_context_hits,omitempty"`
	Numeric        *NumericRule `yaml:"numeric_rule" json:"numeric_rule,omitempty"`

	// Filled from the enclosing rule set and group.
	Category    model.Category `yaml:"-" json:"category"`
	DocType     model.DocType  `yaml:"-" json:"doc_type"`
	Standard    string         `yaml:"-" json:"standard"`
	Subcategory string         `yaml:"-" json:"subcategory"`
}

// NumericRule constrains a number found next to one of the unit patterns
type NumericRule struct {
	Type         NumericType `yaml:"type" json:"type"`
	UnitPatterns []string    `yaml:"unit_patterns" json:"unit_patterns"`
	Min          *float64    `yaml:"min" json:"min,omitempty"`
	Max          *float64    `yaml:"max" json:"max,omitempty"`
}

// NumericType is the comparison a numeric rule applies
type NumericType string

const (
	NumericMin NumericType = "min_value"
	NumericMax NumericType = "max_value"
)

// PredicateKind names a visual validation predicate
type PredicateKind string

const (
	PredicateGenericMark   PredicateKind = "generic_mark"
	PredicateQualifiedMark PredicateKind = "qualified_mark"
	PredicateSafetySymbol  PredicateKind = "safety_symbol"
	PredicateRecycling     PredicateKind = "recycling"
	PredicateBrand         PredicateKind = "brand"
	PredicateKeywords      PredicateKind = "keywords"
	PredicatePatterns      PredicateKind = "patterns"
)

// Predicate is one way a standard can be visually satisfied
type Predicate struct {
	Kind     PredicateKind `yaml:"kind" json:"kind"`
	Terms    []string      `yaml:"terms" json:"terms,omitempty"`
	Patterns []string      `yaml:"patterns" json:"patterns,omitempty"`
}

// Vocabulary holds the shared word lists used by visual predicates
type Vocabulary struct {
	GenericMark   string   `yaml:"generic_mark" json:"generic_mark"`
	Qualifiers    []string `yaml:"qualifiers" json:"qualifiers"`
	SafetySymbols []string `yaml:"safety_symbols" json:"safety_symbols"`
	Recycling     []string `yaml:"recycling" json:"recycling"`
	BrandWords    []string `yaml:"brand_words" json:"brand_words"`
	Brands        []string `yaml:"brands" json:"brands"`
}

// file layouts

type standardsFile struct {
	Categories []struct {
		Category    model.Category `yaml:"category"`
		Standards   []Standard     `yaml:"standards"`
		LabelForced []string       `yaml:"label_forced"`
	} `yaml:"categories"`
}

type rulesFile struct {
	RuleSets []struct {
		Category model.Category `yaml:"category"`
		DocType  model.DocType  `yaml:"doc_type"`
		Groups   []struct {
			Standard    string `yaml:"standard"`
			Subcategory string `yaml:"subcategory"`
			Rules       []Rule `yaml:"rules"`
		} `yaml:"groups"`
	} `yaml:"rule_sets"`
}

type visualFile struct {
	Vocabulary Vocabulary `yaml:"vocabulary"`
	Categories []struct {
		Category  model.Category `yaml:"category"`
		Standards []struct {
			Standard string      `yaml:"standard"`
			AnyOf    []Predicate `yaml:"any_of"`
		} `yaml:"standards"`
	} `yaml:"categories"`
}
