package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinDz11/nopro/internal/metrics"
	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/store"
	"github.com/KevinDz11/nopro/internal/worker"
)

// stubQueue records submissions into a store without running analyses
type stubQueue struct {
	store store.Store
	subs  []worker.Submission
	err   error
}

func (q *stubQueue) Submit(ctx context.Context, sub worker.Submission) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if sub.DocumentID == "" {
		sub.DocumentID = "generated"
	}
	q.subs = append(q.subs, sub)
	return sub.DocumentID, q.store.Put(ctx, model.DocumentRecord{
		ID:          sub.DocumentID,
		Source:      sub.Source,
		Status:      model.StatusQueued,
		SubmittedAt: time.Now(),
	})
}

func (q *stubQueue) Status(ctx context.Context, id string) (model.DocumentRecord, error) {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	return rec.Public(), nil
}

func newTestServer(t *testing.T) (*Server, *stubQueue) {
	t.Helper()
	st := store.NewMemoryStore(time.Hour)
	q := &stubQueue{store: st}
	reg := prometheus.NewRegistry()
	metrics.NewWithRegistry(reg).SetQueueDepth(2)
	return New(model.ServerConfig{Addr: ":0"}, q, st, reg, nil), q
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doneRecord(id string) model.DocumentRecord {
	return model.DocumentRecord{
		ID:     id,
		Status: model.StatusDone,
		RunID:  "run-1",
		Report: &model.Report{
			DocumentID: id,
			Category:   model.CategoryLaptop,
			DocType:    model.DocTypeTechnicalSheet,
			Checklist: []model.ChecklistEntry{{
				Standard: "NOM-001-SCFI-2018",
				Name:     "Seguridad eléctrica",
				State:    model.StateCompliant,
				Score:    100,
			}},
			Evidence: []model.Evidence{},
		},
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s.Handler(), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s.Handler(), http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nopro_queue_depth 2")
}

func TestSubmit(t *testing.T) {
	s, q := newTestServer(t)
	body, _ := json.Marshal(map[string]string{
		"source":   "/inbox/Laptop/ficha.pdf",
		"category": "laptop",
		"doc_type": "ficha técnica",
		"brand":    "Acme",
	})

	rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/documents", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/v1/documents/generated", rec.Header().Get("Location"))

	var resp submitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "generated", resp.ID)
	assert.Equal(t, model.StatusQueued, resp.Status)

	require.Len(t, q.subs, 1)
	assert.Equal(t, "ficha técnica", q.subs[0].DocType)
	assert.Equal(t, "Acme", q.subs[0].Brand)
}

func TestSubmit_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"source":`},
		{"missing source", `{"category":"Laptop"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/documents", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	s, q := newTestServer(t)
	q.err = worker.ErrQueueFull

	rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/documents", []byte(`{"source":"a.pdf"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetDocument(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, q.store.Put(ctx, doneRecord("done-doc")))
	processing := doneRecord("busy-doc")
	processing.Status = model.StatusProcessing
	require.NoError(t, q.store.Put(ctx, processing))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/v1/documents/done-doc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.DocumentRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.NotNil(t, got.Report)
	assert.Equal(t, "NOM-001-SCFI-2018", got.Report.Checklist[0].Standard)

	// reports are withheld until the run is done
	rec = doRequest(t, s.Handler(), http.MethodGet, "/v1/documents/busy-doc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"report"`)

	rec = doRequest(t, s.Handler(), http.MethodGet, "/v1/documents/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments(t *testing.T) {
	s, q := newTestServer(t)
	require.NoError(t, q.store.Put(context.Background(), doneRecord("a")))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/v1/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Documents []model.DocumentRecord `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "a", resp.Documents[0].ID)
	assert.Nil(t, resp.Documents[0].Report, "list omits reports")
}

func TestChecklistXLSX(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, q.store.Put(ctx, doneRecord("a")))
	queued := doneRecord("b")
	queued.Status = model.StatusQueued
	require.NoError(t, q.store.Put(ctx, queued))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/v1/documents/a/checklist.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")

	rec = doRequest(t, s.Handler(), http.MethodGet, "/v1/documents/b/checklist.xlsx", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
