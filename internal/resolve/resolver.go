// Package resolve fuses textual and visual evidence into one checklist
// entry per applicable standard.
package resolve

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/textnorm"
	"github.com/KevinDz11/nopro/internal/visual"
)

// VisualSubcategory is the sub-category carried by visual evidence
const VisualSubcategory = "Inspección visual"

// Input is everything the resolver needs for one document
type Input struct {
	Category model.Category
	DocType  model.DocType

	// Textual is the matcher output in detection order
	Textual []model.Evidence

	// Detection is the detector output for a label; DetectorErr is set
	// instead when the visual pipeline failed.
	Detection   *visual.Detection
	DetectorErr error

	ExpectedBrand string
	// BrandInText reports whether the brand hint was found in the text of
	// a sheet or manual. Labels are checked against the detection.
	BrandInText bool
}

// Result is the resolved checklist and the diagnostics raised on the way
type Result struct {
	Checklist []model.ChecklistEntry
	Signals   []model.Signal
}

// Resolver applies the state and score policy. It holds no per-run state
// and is safe for concurrent use.
type Resolver struct {
	cat    *catalog.Catalog
	canon  *visual.Canonicalizer
	logger *slog.Logger
}

// New creates a resolver
func New(cat *catalog.Catalog, canon *visual.Canonicalizer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cat: cat, canon: canon, logger: logger}
}

// Resolve emits exactly one checklist entry per applicable standard
func (r *Resolver) Resolve(in Input) Result {
	var res Result

	entries, ok := r.cat.Applicable(in.Category, in.DocType)
	if !ok {
		r.logger.Warn("no catalog entry for category", "category", in.Category, "doc_type", in.DocType)
		res.Checklist = []model.ChecklistEntry{}
		res.Signals = append(res.Signals, model.Signal{
			Type:        model.SignalMissingCatalogEntry,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Catalog has no standards for category %s", in.Category),
			Data:        map[string]interface{}{"category": string(in.Category)},
		})
		return res
	}

	isLabel := in.DocType == model.DocTypeLabel
	var obs visual.Observation
	haveVisual := false
	if isLabel {
		switch {
		case in.DetectorErr != nil:
			res.Signals = append(res.Signals, detectorSignal(in.DetectorErr.Error()))
		case in.Detection == nil:
			res.Signals = append(res.Signals, detectorSignal("no detection was produced"))
		default:
			obs = r.canon.Observe(in.Detection, in.ExpectedBrand)
			haveVisual = true
		}
	}

	res.Checklist = make([]model.ChecklistEntry, 0, len(entries))
	for _, e := range entries {
		evidence := textualFor(in.Textual, e.ID)

		if haveVisual {
			if m, ok := r.canon.Evaluate(obs, in.Category, e.ID); ok {
				evidence = append(evidence, visualEvidence(m, in.Detection.Detector))
			}
		}

		entry := model.ChecklistEntry{
			Standard:         e.ID,
			Name:             e.Name,
			Description:      e.Description,
			ApplicableTypes:  append([]model.DocType(nil), e.Applicable...),
			ExpectedEvidence: append([]string(nil), e.ExpectedEvidence...),
			State:            state(evidence, isLabel),
			Score:            r.score(evidence, in.Category, in.DocType, e.ID),
			Evidence:         evidence,
			Forced:           e.Forced,
		}
		res.Checklist = append(res.Checklist, entry)
	}

	if in.ExpectedBrand != "" {
		seen := in.BrandInText
		if isLabel {
			seen = haveVisual && obs.Brand != "" && textnorm.IndexWord(obs.Text, obs.Brand) >= 0
		}
		res.Signals = append(res.Signals, brandSignal(in.ExpectedBrand, seen))
	}

	return res
}

// state: labels are judged on visual evidence only; sheets and manuals on
// any evidence.
func state(evidence []model.Evidence, isLabel bool) model.State {
	for _, ev := range evidence {
		if !isLabel || ev.IsVisual() {
			return model.StateCompliant
		}
	}
	return model.StateNotDetected
}

// score is 100 with any visual evidence, otherwise the share of the
// standard's sub-categories that produced textual evidence.
func (r *Resolver) score(evidence []model.Evidence, cat model.Category, doc model.DocType, std string) float64 {
	detected := make(map[string]bool)
	for _, ev := range evidence {
		if ev.IsVisual() {
			return 100
		}
		detected[ev.Subcategory] = true
	}

	defined := r.cat.Subcategories(cat, doc, std)
	if len(defined) == 0 {
		return 0
	}
	hits := 0
	for _, s := range defined {
		if detected[s] {
			hits++
		}
	}
	return round2(float64(hits) / float64(len(defined)) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func textualFor(all []model.Evidence, std string) []model.Evidence {
	out := []model.Evidence{}
	for _, ev := range all {
		if ev.Standard == std && !ev.IsVisual() {
			out = append(out, ev)
		}
	}
	return out
}

func visualEvidence(m visual.Match, detector string) model.Evidence {
	return model.Evidence{
		Kind:        model.EvidenceVisual,
		Standard:    m.Standard,
		Subcategory: VisualSubcategory,
		Description: "Label inspection",
		Page:        1,
		Snippet:     "visual marks: " + strings.Join(m.Tokens, ", "),
		Pattern:     m.Pattern(),
		Source:      model.SourceDetector,
		Detector:    detector,
		Confidence:  m.Confidence,
	}
}

func detectorSignal(reason string) model.Signal {
	return model.Signal{
		Type:        model.SignalDetectorUnavailable,
		Severity:    model.SeverityWarning,
		Description: "Visual detection unavailable; label standards resolved without visual evidence",
		Data:        map[string]interface{}{"error": reason},
	}
}

func brandSignal(brand string, seen bool) model.Signal {
	desc := fmt.Sprintf("Expected brand %q found", brand)
	if !seen {
		desc = fmt.Sprintf("Expected brand %q not found", brand)
	}
	return model.Signal{
		Type:        model.SignalBrandHint,
		Severity:    model.SeverityInfo,
		Description: desc,
		Data:        map[string]interface{}{"brand": brand, "seen": seen},
	}
}
