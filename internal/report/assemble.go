// Package report packages resolved checklists into reports and renders them
// as JSON, XLSX workbooks and terminal summaries.
package report

import (
	"math"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/resolve"
)

// Meta identifies the analysed document and run
type Meta struct {
	DocumentID    string
	RunID         string
	Source        string
	Category      model.Category
	DocType       model.DocType
	ExpectedBrand string
	Pages         int
	SkippedPages  []int
}

// Assembler builds reports from resolver output
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an assembler stamping reports with the current time
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// Assemble builds the report. Signals raised before resolution (category
// fallback, skipped rules) come first.
func (a *Assembler) Assemble(meta Meta, res resolve.Result, signals ...model.Signal) *model.Report {
	r := &model.Report{
		DocumentID:    meta.DocumentID,
		RunID:         meta.RunID,
		Source:        meta.Source,
		Category:      meta.Category,
		DocType:       meta.DocType,
		ExpectedBrand: meta.ExpectedBrand,
		AnalyzedAt:    a.now().UTC(),
		Pages:         meta.Pages,
		SkippedPages:  meta.SkippedPages,
		Checklist:     res.Checklist,
		Evidence:      []model.Evidence{},
	}
	if r.Checklist == nil {
		r.Checklist = []model.ChecklistEntry{}
	}
	r.Signals = append(append([]model.Signal(nil), signals...), res.Signals...)

	var visual []model.Evidence
	for _, e := range r.Checklist {
		for _, ev := range e.Evidence {
			if ev.IsVisual() {
				visual = append(visual, ev)
				continue
			}
			r.Evidence = append(r.Evidence, ev)
		}
	}
	r.Evidence = append(r.Evidence, visual...)
	r.Summary = Summarize(r.Checklist)
	return r
}

// Summarize counts checklist outcomes
func Summarize(entries []model.ChecklistEntry) model.Summary {
	s := model.Summary{Standards: len(entries)}
	var total float64
	for _, e := range entries {
		if e.State == model.StateCompliant {
			s.Compliant++
		} else {
			s.NotDetected++
		}
		for _, ev := range e.Evidence {
			if ev.IsVisual() {
				s.Visual++
			} else {
				s.Textual++
			}
		}
		total += e.Score
	}
	if len(entries) > 0 {
		s.MeanScore = math.Round(total/float64(len(entries))*100) / 100
	}
	return s
}
