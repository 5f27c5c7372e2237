// Package metrics provides Prometheus instrumentation for analysis runs,
// the worker queue and visual detection. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes
const (
	OutcomeDone       = "done"
	OutcomeUnreadable = "unreadable"
	OutcomeError      = "error"
)

// Metrics holds every collector of the engine
type Metrics struct {
	DocumentsAnalyzed *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	EvidenceFound     *prometheus.CounterVec
	DetectorFailures  prometheus.Counter
	QueueDepth        prometheus.Gauge
	QueueRejected     prometheus.Counter
}

// New registers the collectors with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nopro_documents_analyzed_total",
			Help: "Documents analyzed, by category, document type and outcome",
		}, []string{"category", "doc_type", "outcome"}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nopro_analysis_duration_seconds",
			Help:    "Duration of single-document analyses",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"doc_type"}),
		EvidenceFound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nopro_evidence_total",
			Help: "Evidence items attached to checklists, by kind",
		}, []string{"kind"}),
		DetectorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "nopro_detector_failures_total",
			Help: "Label analyses that ran without visual evidence",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "nopro_queue_depth",
			Help: "Documents waiting for a worker",
		}),
		QueueRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "nopro_queue_rejected_total",
			Help: "Submissions refused by a full or closed queue",
		}),
	}
}

// ObserveAnalysis records one finished analysis.
// Call with time.Now() at the start of the run.
func (m *Metrics) ObserveAnalysis(category, docType, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.DocumentsAnalyzed.WithLabelValues(category, docType, outcome).Inc()
	m.AnalysisDuration.WithLabelValues(docType).Observe(time.Since(start).Seconds())
}

// AddEvidence counts evidence items of a report
func (m *Metrics) AddEvidence(textual, visual int) {
	if m == nil {
		return
	}
	m.EvidenceFound.WithLabelValues("textual").Add(float64(textual))
	m.EvidenceFound.WithLabelValues("visual").Add(float64(visual))
}

func (m *Metrics) IncDetectorFailure() {
	if m == nil {
		return
	}
	m.DetectorFailures.Inc()
}

// SetQueueDepth reports the number of queued documents
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) IncQueueRejected() {
	if m == nil {
		return
	}
	m.QueueRejected.Inc()
}
