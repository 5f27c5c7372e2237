package model

import "time"

// DocumentStatus is the lifecycle state of a submitted document
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusDone       DocumentStatus = "done"
	StatusError      DocumentStatus = "error"
)

// Terminal reports whether no further transitions are expected
func (s DocumentStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// DocumentRecord tracks one submitted document and its latest analysis.
// Report is only set once Status is StatusDone.
type DocumentRecord struct {
	ID            string         `json:"id"`
	Source        string         `json:"source"`
	Category      Category       `json:"category"`
	DocType       DocType        `json:"doc_type"`
	ExpectedBrand string         `json:"expected_brand,omitempty"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	RunID         string         `json:"run_id"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	Report        *Report        `json:"report,omitempty"`
}

// Public returns a copy safe to expose to pollers: the report is withheld
// until the run has finished successfully.
func (r DocumentRecord) Public() DocumentRecord {
	if r.Status != StatusDone {
		r.Report = nil
	}
	return r
}
