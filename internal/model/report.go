package model

import "time"

// Report is the complete result of analyzing one document
type Report struct {
	DocumentID    string    `json:"document_id"`
	RunID         string    `json:"run_id"`
	Source        string    `json:"source"`
	Category      Category  `json:"category"`
	DocType       DocType   `json:"doc_type"`
	ExpectedBrand string    `json:"expected_brand,omitempty"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
	Pages         int       `json:"pages"`
	SkippedPages  []int     `json:"skipped_pages,omitempty"` // index/contents pages

	Evidence  []Evidence       `json:"evidence"`  // flat list, textual then visual
	Checklist []ChecklistEntry `json:"checklist"` // one entry per applicable standard
	Summary   Summary          `json:"summary"`
	Signals   []Signal         `json:"signals,omitempty"`

	Labs []LabRecommendation `json:"labs,omitempty"`
}

// ChecklistEntry is the per-standard compliance outcome of a document
type ChecklistEntry struct {
	Standard         string     `json:"standard"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	ApplicableTypes  []DocType  `json:"applicable_types"`
	ExpectedEvidence []string   `json:"expected_evidence"`
	State            State      `json:"state"`
	Score            float64    `json:"score"` // 0-100
	Evidence         []Evidence `json:"evidence"`
	Forced           bool       `json:"forced,omitempty"` // evaluated on labels outside declared applicability
}

// State is the compliance verdict of a checklist entry
type State string

const (
	StateCompliant   State = "COMPLIANT"
	StateNotDetected State = "NOT_DETECTED"
)

// Summary aggregates checklist outcomes
type Summary struct {
	Standards   int     `json:"standards"`
	Compliant   int     `json:"compliant"`
	NotDetected int     `json:"not_detected"`
	Textual     int     `json:"textual_evidence"`
	Visual      int     `json:"visual_evidence"`
	MeanScore   float64 `json:"mean_score"`
}

// Signal is a transparent diagnostic attached to a report
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies diagnostic signals
type SignalType string

const (
	SignalUnknownCategory     SignalType = "unknown_category"
	SignalUnknownDocType      SignalType = "unknown_doc_type"
	SignalMissingCatalogEntry SignalType = "missing_catalog_entry"
	SignalMalformedRule       SignalType = "malformed_rule"
	SignalDetectorUnavailable SignalType = "detector_unavailable"
	SignalIndexPagesSkipped   SignalType = "index_pages_skipped"
	SignalBrandHint           SignalType = "brand_hint"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LabRecommendation suggests a testing laboratory for the analyzed product
type LabRecommendation struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website,omitempty"`
	ServiceType string   `json:"service_type,omitempty"`
	Score       int      `json:"score"`
	Reason      string   `json:"reason"`
	Standards   []string `json:"standards,omitempty"` // accredited standards shared with the product
}
