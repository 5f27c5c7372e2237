package model

// Evidence is a single indication, textual or visual, that a document
// supports one standard. Evidence is created once and never modified.
type Evidence struct {
	Kind        EvidenceKind   `json:"kind"`
	Standard    string         `json:"standard"`
	Subcategory string         `json:"subcategory"`
	RuleID      string         `json:"rule_id,omitempty"`
	Description string         `json:"description,omitempty"`
	Page        int            `json:"page"`
	Snippet     string         `json:"snippet"`
	Pattern     string         `json:"pattern"`
	Source      EvidenceSource `json:"source"`
	Detector    string         `json:"detector,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
}

// EvidenceKind separates text matches from visual confirmations
type EvidenceKind string

const (
	EvidenceTextual EvidenceKind = "textual"
	EvidenceVisual  EvidenceKind = "visual"
)

// EvidenceSource records which component produced the evidence
type EvidenceSource string

const (
	SourceMatcher  EvidenceSource = "matcher"
	SourceDetector EvidenceSource = "detector"
)

// IsVisual reports whether the evidence came from the visual pipeline
func (e Evidence) IsVisual() bool {
	return e.Kind == EvidenceVisual
}
