package catalog

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/KevinDz11/nopro/internal/model"
)

func TestDefault_LoadsWithoutIssues(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if issues := c.Issues(); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
	if got := len(c.Categories()); got != 3 {
		t.Errorf("Expected 3 categories, got %d", got)
	}
}

func TestApplicable_LabelIncludesForced(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	entries, ok := c.Applicable(model.CategoryLaptop, model.DocTypeLabel)
	if !ok {
		t.Fatal("Expected Laptop to have catalog data")
	}

	want := []string{
		"NOM-019-SE-2021",
		"NOM-024-SCFI-2013",
		"NMX-I-60950-1-NYCE-2015",
		"NOM-106-SCFI-2000",
		"NOM-008-SCFI-2002",
	}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %v", len(want), len(entries), entries)
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].ID, id)
		}
	}
	if !entries[4].Forced {
		t.Error("Expected NOM-008 to be forced on labels")
	}
	for _, e := range entries[:4] {
		if e.Forced {
			t.Errorf("%s should not be forced", e.ID)
		}
	}
}

func TestApplicable_ForcedNotDuplicated(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	// NOM-030 is forced for Luminaire labels but only applicable to TS/Manual;
	// NMX-J-507/2 is both applicable and never forced.
	entries, _ := c.Applicable(model.CategoryLuminaire, model.DocTypeLabel)
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("%s listed %d times", id, n)
		}
	}
	if seen["NOM-030-ENER-2016"] != 1 {
		t.Error("Expected forced NOM-030-ENER-2016 on Luminaire labels")
	}
}

func TestApplicable_ForcedOnlyOnLabels(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	entries, _ := c.Applicable(model.CategorySmartTV, model.DocTypeManual)
	for _, e := range entries {
		if e.Forced {
			t.Errorf("Manual should not carry forced entries, got %s", e.ID)
		}
		if !e.AppliesTo(model.DocTypeManual) {
			t.Errorf("%s does not declare Manual", e.ID)
		}
	}
}

func TestApplicable_MissingCategory(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Applicable(model.Category("Refrigerator"), model.DocTypeLabel); ok {
		t.Error("Expected missing category to report false")
	}
	if _, ok := c.Standards(model.Category("Refrigerator")); ok {
		t.Error("Expected Standards to report false for missing category")
	}
}

func TestSubcategories(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	subs := c.Subcategories(model.CategoryLuminaire, model.DocTypeTechnicalSheet, "NOM-031-ENER-2019")
	if len(subs) != 6 {
		t.Errorf("Expected 6 sub-categories, got %d: %v", len(subs), subs)
	}

	subs = c.Subcategories(model.CategoryLaptop, model.DocTypeTechnicalSheet, "NOM-001-SCFI-2018")
	if len(subs) != 1 || subs[0] != "Seguridad eléctrica" {
		t.Errorf("Unexpected sub-categories: %v", subs)
	}
}

func TestRules_CarryContext(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	rules := c.Rules(model.CategoryLaptop, model.DocTypeTechnicalSheet)
	if len(rules) == 0 {
		t.Fatal("Expected rules for Laptop/TechnicalSheet")
	}
	r := rules[0]
	if r.ID != "laptop_ficha_parametros_electricos" {
		t.Errorf("Unexpected first rule: %s", r.ID)
	}
	if r.Category != model.CategoryLaptop || r.DocType != model.DocTypeTechnicalSheet {
		t.Errorf("Rule context not filled: %+v", r)
	}
	if r.Standard != "NOM-001-SCFI-2018" || r.Subcategory != "Seguridad eléctrica" {
		t.Errorf("Unexpected group: %s / %s", r.Standard, r.Subcategory)
	}
}

func TestPredicates(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	preds := c.Predicates(model.CategoryLaptop, "NOM-024-SCFI-2013")
	if len(preds) != 1 || preds[0].Kind != PredicateRecycling {
		t.Errorf("Unexpected predicates: %+v", preds)
	}
	if got := c.Vocabulary().GenericMark; got != "nom" {
		t.Errorf("GenericMark = %q, want nom", got)
	}
	if len(c.VisualStandards(model.CategorySmartTV)) == 0 {
		t.Error("Expected visual standards for SmartTV")
	}
}

const minimalRules = `
rule_sets:
  - category: Laptop
    doc_type: Manual
    groups:
      - standard: NOM-999
        subcategory: Fantasma
        rules:
          - id: dup
            description: first
            patterns: ['(unclosed']
          - id: dup
            description: second
            core_terms: [x]
`

const minimalStandards = `
categories:
  - category: Laptop
    standards:
      - id: NOM-001-SCFI-2018
        name: Seguridad
        applicable: [Manual]
    label_forced: [NOM-404]
`

const minimalVisual = `
vocabulary:
  qualifiers: [ce]
categories: []
`

func TestLoad_SemanticIssues(t *testing.T) {
	fsys := fstest.MapFS{
		StandardsFile: {Data: []byte(minimalStandards)},
		RulesFile:     {Data: []byte(minimalRules)},
		VisualFile:    {Data: []byte(minimalVisual)},
	}

	c, err := Load(fsys)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	issues := strings.Join(c.Issues(), "\n")
	for _, want := range []string{"NOM-404", "unknown standard NOM-999", "duplicate rule id dup", "invalid pattern"} {
		if !strings.Contains(issues, want) {
			t.Errorf("Expected issue containing %q, got:\n%s", want, issues)
		}
	}
	if c.Vocabulary().GenericMark != "nom" {
		t.Error("Expected generic mark default")
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	bad := `
categories:
  - category: Laptop
    standards:
      - id: NOM-001-SCFI-2018
        name: Seguridad
        applicable: [Brochure]
`
	fsys := fstest.MapFS{
		StandardsFile: {Data: []byte(bad)},
		RulesFile:     {Data: []byte(minimalRules)},
		VisualFile:    {Data: []byte(minimalVisual)},
	}

	_, err := Load(fsys)
	if err == nil {
		t.Fatal("Expected schema error, got nil")
	}
	if !strings.Contains(err.Error(), "does not match schema") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	fsys := fstest.MapFS{
		StandardsFile: {Data: []byte(minimalStandards)},
	}
	if _, err := Load(fsys); err == nil {
		t.Fatal("Expected error for missing rules file")
	}
}

func TestLoadDir_FallsBackToEmbedded(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}
	if _, ok := c.Standards(model.CategoryLuminaire); !ok {
		t.Error("Expected embedded Luminaire entries")
	}
}
