// Package catalog loads the norm catalog, requirement rules and visual
// predicates. A Catalog is immutable after loading and safe for
// concurrent use without locking.
package catalog

import (
	"fmt"
	"regexp"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/textnorm"
)

type docKey struct {
	cat model.Category
	doc model.DocType
}

type stdKey struct {
	cat model.Category
	doc model.DocType
	std string
}

// Catalog is the read-only, process-wide rule configuration
type Catalog struct {
	categories []model.Category
	standards  map[model.Category][]Standard
	forced     map[model.Category][]string
	rules      map[docKey][]Rule
	subcats    map[stdKey][]string
	predicates map[model.Category]map[string][]Predicate
	vocab      Vocabulary
	issues     []string
}

// Categories returns the categories that have catalog data, in file order
func (c *Catalog) Categories() []model.Category {
	return append([]model.Category(nil), c.categories...)
}

// Standards returns the catalog entries of a category.
// The second result is false when the category has no catalog data.
func (c *Catalog) Standards(cat model.Category) ([]Standard, bool) {
	stds, ok := c.standards[cat]
	if !ok || len(stds) == 0 {
		return nil, false
	}
	return append([]Standard(nil), stds...), true
}

// Standard looks up a single entry
func (c *Catalog) Standard(cat model.Category, id string) (Standard, bool) {
	for _, s := range c.standards[cat] {
		if s.ID == id {
			return s, true
		}
	}
	return Standard{}, false
}

// Applicable returns the standards evaluated for a document: every entry
// declaring the document type, in catalog order, followed for labels by the
// category's forced standards that were not already included.
func (c *Catalog) Applicable(cat model.Category, doc model.DocType) ([]Entry, bool) {
	stds, ok := c.standards[cat]
	if !ok || len(stds) == 0 {
		return nil, false
	}

	seen := make(map[string]bool, len(stds))
	var out []Entry
	for _, s := range stds {
		if s.AppliesTo(doc) && !seen[s.ID] {
			seen[s.ID] = true
			out = append(out, Entry{Standard: s})
		}
	}

	if doc == model.DocTypeLabel {
		for _, id := range c.forced[cat] {
			if seen[id] {
				continue
			}
			s, ok := c.Standard(cat, id)
			if !ok {
				continue
			}
			seen[id] = true
			out = append(out, Entry{Standard: s, Forced: true})
		}
	}
	return out, true
}

// Rules returns the requirement rules of a (category, document type) pair
func (c *Catalog) Rules(cat model.Category, doc model.DocType) []Rule {
	return append([]Rule(nil), c.rules[docKey{cat, doc}]...)
}

// Subcategories returns the distinct sub-categories defined for a standard,
// which form the denominator of its textual score.
func (c *Catalog) Subcategories(cat model.Category, doc model.DocType, std string) []string {
	return append([]string(nil), c.subcats[stdKey{cat, doc, std}]...)
}

// Predicates returns the visual predicates of a standard within a category
func (c *Catalog) Predicates(cat model.Category, std string) []Predicate {
	return append([]Predicate(nil), c.predicates[cat][std]...)
}

// VisualStandards lists the standards with visual predicates for a category
func (c *Catalog) VisualStandards(cat model.Category) []string {
	var out []string
	for _, s := range c.standards[cat] {
		if len(c.predicates[cat][s.ID]) > 0 {
			out = append(out, s.ID)
		}
	}
	return out
}

// Vocabulary returns the shared visual vocabulary
func (c *Catalog) Vocabulary() Vocabulary {
	return c.vocab
}

// Issues returns non-fatal problems found while loading
func (c *Catalog) Issues() []string {
	return append([]string(nil), c.issues...)
}

func (c *Catalog) issuef(format string, args ...interface{}) {
	c.issues = append(c.issues, fmt.Sprintf(format, args...))
}

// build indexes the decoded files and records semantic issues
func build(sf *standardsFile, rf *rulesFile, vf *visualFile) *Catalog {
	c := &Catalog{
		standards:  make(map[model.Category][]Standard),
		forced:     make(map[model.Category][]string),
		rules:      make(map[docKey][]Rule),
		subcats:    make(map[stdKey][]string),
		predicates: make(map[model.Category]map[string][]Predicate),
		vocab:      vf.Vocabulary,
	}

	for _, cs := range sf.Categories {
		if _, dup := c.standards[cs.Category]; dup {
			c.issuef("category %s declared twice; later entries merged", cs.Category)
		} else {
			c.categories = append(c.categories, cs.Category)
		}
		for _, s := range cs.Standards {
			if prev, ok := c.Standard(cs.Category, s.ID); ok {
				c.issuef("%s: standard %s declared twice; applicability merged", cs.Category, s.ID)
				c.mergeStandard(cs.Category, prev, s)
				continue
			}
			c.standards[cs.Category] = append(c.standards[cs.Category], s)
		}
		for _, id := range cs.LabelForced {
			if _, ok := c.Standard(cs.Category, id); !ok {
				c.issuef("%s: forced label standard %s is not in the catalog", cs.Category, id)
				continue
			}
			c.forced[cs.Category] = append(c.forced[cs.Category], id)
		}
	}

	ids := make(map[string]bool)
	for _, rs := range rf.RuleSets {
		key := docKey{rs.Category, rs.DocType}
		for _, g := range rs.Groups {
			if _, ok := c.Standard(rs.Category, g.Standard); !ok {
				c.issuef("%s/%s: rules reference unknown standard %s", rs.Category, rs.DocType, g.Standard)
			}
			sk := stdKey{rs.Category, rs.DocType, g.Standard}
			if !contains(c.subcats[sk], g.Subcategory) {
				c.subcats[sk] = append(c.subcats[sk], g.Subcategory)
			}
			for _, r := range g.Rules {
				if ids[r.ID] {
					c.issuef("%s/%s: duplicate rule id %s", rs.Category, rs.DocType, r.ID)
				}
				ids[r.ID] = true
				for _, p := range r.Patterns {
					if _, err := regexp.Compile(textnorm.FoldPattern(p)); err != nil {
						c.issuef("rule %s: invalid pattern %q: %v", r.ID, p, err)
					}
				}
				if n := r.Numeric; n != nil {
					switch {
					case n.Type != NumericMin && n.Type != NumericMax:
						c.issuef("rule %s: unknown numeric rule type %q", r.ID, n.Type)
					case n.Type == NumericMin && n.Min == nil, n.Type == NumericMax && n.Max == nil:
						c.issuef("rule %s: numeric rule %s has no bound", r.ID, n.Type)
					}
				}
				r.Category = rs.Category
				r.DocType = rs.DocType
				r.Standard = g.Standard
				r.Subcategory = g.Subcategory
				c.rules[key] = append(c.rules[key], r)
			}
		}
	}

	for _, vc := range vf.Categories {
		if c.predicates[vc.Category] == nil {
			c.predicates[vc.Category] = make(map[string][]Predicate)
		}
		for _, sp := range vc.Standards {
			if _, ok := c.Standard(vc.Category, sp.Standard); !ok {
				c.issuef("%s: visual predicates reference unknown standard %s", vc.Category, sp.Standard)
			}
			for _, p := range sp.AnyOf {
				for _, pat := range p.Patterns {
					if _, err := regexp.Compile(textnorm.FoldPattern(pat)); err != nil {
						c.issuef("%s/%s: invalid visual pattern %q: %v", vc.Category, sp.Standard, pat, err)
					}
				}
			}
			c.predicates[vc.Category][sp.Standard] = append(c.predicates[vc.Category][sp.Standard], sp.AnyOf...)
		}
	}
	if c.vocab.GenericMark == "" {
		c.vocab.GenericMark = "nom"
	}

	return c
}

// mergeStandard folds a duplicate declaration into the first one, keeping
// the first position, name and description.
func (c *Catalog) mergeStandard(cat model.Category, prev, dup Standard) {
	for i, s := range c.standards[cat] {
		if s.ID != prev.ID {
			continue
		}
		for _, d := range dup.Applicable {
			if !s.AppliesTo(d) {
				s.Applicable = append(s.Applicable, d)
			}
		}
		for _, e := range dup.ExpectedEvidence {
			if !contains(s.ExpectedEvidence, e) {
				s.ExpectedEvidence = append(s.ExpectedEvidence, e)
			}
		}
		c.standards[cat][i] = s
		return
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
