package visual

import (
	"reflect"
	"testing"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/model"
)

func newTestCanonicalizer(t *testing.T) *Canonicalizer {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error: %v", err)
	}
	return NewCanonicalizer(cat, 0.3)
}

func TestCanonicalize_QualifiedMarkIsNotGeneric(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{Labels: []Label{{Name: "NOM-CE", Confidence: 0.91}}}

	got := c.Canonicalize(det, model.CategorySmartTV, "")
	want := []string{"NMX-I-60950-1-NYCE-2015"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Canonicalize = %v, want %v", got, want)
	}

	if c.Satisfies(det, model.CategorySmartTV, "NOM-106-SCFI-2000", "") {
		t.Error("NOM-CE must not satisfy the generic mark standard")
	}
	if !c.Satisfies(det, model.CategorySmartTV, "NMX-I-60950-1-NYCE-2015", "") {
		t.Error("NOM-CE should satisfy the safety standard")
	}
}

func TestCanonicalize_GenericMark(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{Labels: []Label{{Name: "nom (0.80)", Confidence: 0.8}}}

	got := c.Canonicalize(det, model.CategoryLaptop, "")
	want := []string{"NOM-106-SCFI-2000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Canonicalize = %v, want %v", got, want)
	}

	m, ok := c.Evaluate(c.Observe(det, ""), model.CategoryLaptop, "NOM-106-SCFI-2000")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Predicate != "generic_mark" {
		t.Errorf("Predicate = %q, want generic_mark", m.Predicate)
	}
	if m.Confidence == nil || *m.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", m.Confidence)
	}
	if m.Pattern() != "visual: generic_mark(NOM)" {
		t.Errorf("Pattern = %q", m.Pattern())
	}
}

func TestCanonicalize_SpacedQualifierInText(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{RawContextText: "Logotipo NOM NYCE"}

	got := c.Canonicalize(det, model.CategoryLaptop, "")
	want := []string{"NMX-I-60950-1-NYCE-2015"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Canonicalize = %v, want %v", got, want)
	}

	m, ok := c.Evaluate(c.Observe(det, ""), model.CategoryLaptop, "NMX-I-60950-1-NYCE-2015")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Confidence != nil {
		t.Errorf("text-only match should carry no confidence, got %v", *m.Confidence)
	}
	if !reflect.DeepEqual(m.Tokens, []string{"NOM-NYCE"}) {
		t.Errorf("Tokens = %v", m.Tokens)
	}
}

func TestCanonicalize_SeparateLabelsDoNotCompound(t *testing.T) {
	c := newTestCanonicalizer(t)
	tests := []struct {
		name     string
		category model.Category
		det      *Detection
		want     []string
	}{
		{
			name:     "nom and ce on a tv",
			category: model.CategorySmartTV,
			det:      &Detection{Labels: []Label{{Name: "NOM", Confidence: 0.9}, {Name: "CE", Confidence: 0.85}}},
			want:     []string{"NOM-106-SCFI-2000"},
		},
		{
			name:     "nom and ul on a laptop",
			category: model.CategoryLaptop,
			det:      &Detection{Labels: []Label{{Name: "NOM", Confidence: 0.9}, {Name: "UL", Confidence: 0.8}}},
			want:     []string{"NOM-106-SCFI-2000"},
		},
		{
			name:     "mark ending the text and a qualifier label",
			category: model.CategoryLaptop,
			det:      &Detection{RawContextText: "Sello NOM", Labels: []Label{{Name: "NYCE", Confidence: 0.7}}},
			want:     []string{"NOM-106-SCFI-2000"},
		},
		{
			name:     "mark and qualifier on separate text lines",
			category: model.CategorySmartTV,
			det:      &Detection{RawContextText: "NOM\nCE"},
			want:     []string{"NOM-106-SCFI-2000"},
		},
		{
			name:     "compound label next to a bare one",
			category: model.CategorySmartTV,
			det:      &Detection{Labels: []Label{{Name: "NOM-CE", Confidence: 0.9}, {Name: "NOM", Confidence: 0.8}}},
			want:     []string{"NMX-I-60950-1-NYCE-2015", "NOM-106-SCFI-2000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Canonicalize(tt.det, tt.category, "")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Canonicalize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalize_LowConfidenceIgnored(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{Labels: []Label{{Name: "NOM-CE", Confidence: 0.1}}}

	if got := c.Canonicalize(det, model.CategorySmartTV, ""); len(got) != 0 {
		t.Errorf("Canonicalize = %v, want empty", got)
	}
}

func TestCanonicalize_NilDetection(t *testing.T) {
	c := newTestCanonicalizer(t)

	if got := c.Canonicalize(nil, model.CategoryLaptop, ""); len(got) != 0 {
		t.Errorf("Canonicalize(nil) = %v, want empty", got)
	}
	if c.Satisfies(nil, model.CategoryLaptop, "NOM-106-SCFI-2000", "") {
		t.Error("nil detection satisfied a standard")
	}
}

func TestCanonicalize_ExplicitCode(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{RawContextText: "Cumple con NOM-008-SCFI-2002 y NOM-001-SCFI-2018"}

	got := c.Canonicalize(det, model.CategoryLaptop, "")
	want := []string{"NOM-001-SCFI-2018", "NOM-008-SCFI-2002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Canonicalize = %v, want %v", got, want)
	}

	m, ok := c.Evaluate(c.Observe(det, ""), model.CategoryLaptop, "NOM-008-SCFI-2002")
	if !ok || m.Predicate != "explicit_code" {
		t.Errorf("Evaluate = %+v, %v; want explicit_code", m, ok)
	}
}

func TestCanonicalize_Patterns(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{RawContextText: "127 V~ 60 Hz 9 W 800 lm"}

	got := c.Canonicalize(det, model.CategoryLuminaire, "")
	want := []string{"NMX-J-507/2-ANCE-2013", "NOM-031-ENER-2019"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Canonicalize = %v, want %v", got, want)
	}

	m, _ := c.Evaluate(c.Observe(det, ""), model.CategoryLuminaire, "NOM-031-ENER-2019")
	if !reflect.DeepEqual(m.Tokens, []string{"800 lm", "9 w"}) {
		t.Errorf("Tokens = %v", m.Tokens)
	}
}

func TestCanonicalize_BrandHint(t *testing.T) {
	c := newTestCanonicalizer(t)
	det := &Detection{RawContextText: "Hecho por Acme Corp"}

	if c.Satisfies(det, model.CategoryLaptop, "NOM-008-SCFI-2002", "") {
		t.Error("unknown brand satisfied without a hint")
	}
	if !c.Satisfies(det, model.CategoryLaptop, "NOM-008-SCFI-2002", "ACME") {
		t.Error("expected brand hint to satisfy the brand predicate")
	}
}

func TestNormalizeLabel(t *testing.T) {
	c := newTestCanonicalizer(t)
	tests := []struct {
		in   string
		want string
	}{
		{"nom ce (0.91)", "NOM-CE"},
		{"NOM_NYCE 0.87", "NOM-NYCE"},
		{"NOM-UL 95%", "NOM-UL"},
		{"NOM–ANCE", "NOM-ANCE"},
		{"nom", "NOM"},
		{"NOM-106-SCFI-2000", "NOM-106-SCFI-2000"},
		{"  recycle  bin ", "RECYCLE BIN"},
	}

	for _, tt := range tests {
		if got := c.NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExplicitCodes(t *testing.T) {
	got := ExplicitCodes("Cumple NOM-019-SE-2021 y NMX-I-60950-1-NYCE-2015; NOM–024–SCFI–2013, NOM-019-SE-2021")
	want := []string{"NOM-019-SE-2021", "NMX-I-60950-1-NYCE-2015", "NOM-024-SCFI-2013"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExplicitCodes = %v, want %v", got, want)
	}
}
