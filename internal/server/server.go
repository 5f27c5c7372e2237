// Package server exposes the operational HTTP surface: health, metrics,
// document submission and status polling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/KevinDz11/nopro/internal/report"
	"github.com/KevinDz11/nopro/internal/store"
	"github.com/KevinDz11/nopro/internal/worker"
)

// Queue is the background analysis queue
type Queue interface {
	Submit(ctx context.Context, sub worker.Submission) (string, error)
	Status(ctx context.Context, id string) (model.DocumentRecord, error)
}

// Server serves the HTTP API
type Server struct {
	addr     string
	queue    Queue
	store    store.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New creates a server. gatherer may be nil to use the default registry.
func New(cfg model.ServerConfig, q Queue, st store.Store, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		addr:     cfg.Addr,
		queue:    q,
		store:    st,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/documents", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleSubmit)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/checklist.xlsx", s.handleXLSX)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	ID       string `json:"id,omitempty"`
	Source   string `json:"source"`
	Category string `json:"category"`
	DocType  string `json:"doc_type"`
	Brand    string `json:"brand,omitempty"`
}

type submitResponse struct {
	ID     string               `json:"id"`
	Status model.DocumentStatus `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	id, err := s.queue.Submit(r.Context(), worker.Submission{
		DocumentID: req.ID,
		Source:     req.Source,
		Category:   req.Category,
		DocType:    req.DocType,
		Brand:      req.Brand,
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrQueueClosed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("submission failed", "source", req.Source, "error", err)
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	w.Header().Set("Location", "/v1/documents/"+id)
	writeJSON(w, http.StatusAccepted, submitResponse{ID: id, Status: model.StatusQueued})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleList returns every record without reports
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	out := make([]model.DocumentRecord, 0, len(recs))
	for _, rec := range recs {
		rec.Report = nil
		out = append(out, rec)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if rec.Status != model.StatusDone || rec.Report == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("document is %s", rec.Status))
		return
	}

	data, err := report.ExportXLSX(rec.Report)
	if err != nil {
		s.logger.Error("xlsx export failed", "document", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="checklist.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// lookup loads the public record named in the URL, writing the error response
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (model.DocumentRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.queue.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return rec, false
		}
		s.logger.Error("status lookup failed", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return rec, false
	}
	return rec, true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
