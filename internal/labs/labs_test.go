package labs

import (
	"strings"
	"testing"

	"github.com/KevinDz11/nopro/internal/model"
)

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if got := len(d.Labs()); got != 3 {
		t.Errorf("expected 3 labs, got %d", got)
	}
}

func TestRecommend_Luminaire(t *testing.T) {
	d, _ := Default()

	recs := d.Recommend(model.CategoryLuminaire, []string{"NOM-031-ENER-2019", "NMX-J-307-ANCE-2017"}, 0)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}

	// ANCE: 3 + 2*2 = 7, LABOTEC: 3 + 2 = 5, NYCE: 3
	wantOrder := []string{"ANCE", "LABOTEC", "NYCE"}
	wantScore := []int{7, 5, 3}
	for i, r := range recs {
		if !strings.Contains(r.Name, wantOrder[i]) {
			t.Errorf("rec %d = %s, want %s", i, r.Name, wantOrder[i])
		}
		if r.Score != wantScore[i] {
			t.Errorf("%s score = %d, want %d", wantOrder[i], r.Score, wantScore[i])
		}
	}

	want := "Cuenta con experiencia en Luminaire y acreditación en NOM-031-ENER-2019, NMX-J-307-ANCE-2017"
	if recs[0].Reason != want {
		t.Errorf("Reason = %q, want %q", recs[0].Reason, want)
	}
	if recs[2].Reason != "Cuenta con experiencia en Luminaire" {
		t.Errorf("Reason = %q", recs[2].Reason)
	}
}

func TestRecommend_NoMatchAndLimit(t *testing.T) {
	d, _ := Default()

	recs := d.Recommend(model.Category("Tablet"), nil, 2)
	if len(recs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Score != 0 || r.Reason != "Laboratorio disponible para pruebas técnicas" {
			t.Errorf("unexpected recommendation: %+v", r)
		}
	}
	// ties keep file order
	if !strings.Contains(recs[0].Name, "NYCE") {
		t.Errorf("first = %s, want NYCE", recs[0].Name)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(strings.NewReader("laboratories:\n  - phone: 1\n")); err == nil {
		t.Error("expected error for lab without name")
	}
	if _, err := Load(strings.NewReader("labs: []\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestCompliant(t *testing.T) {
	got := Compliant([]model.ChecklistEntry{
		{Standard: "A", State: model.StateCompliant},
		{Standard: "B", State: model.StateNotDetected},
		{Standard: "C", State: model.StateCompliant},
	})
	if strings.Join(got, ",") != "A,C" {
		t.Errorf("Compliant = %v", got)
	}
}
