package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/metrics"
	"github.com/pbaille/flux/internal/store"
)

// Server exposes a thought store over HTTP
type Server struct {
	store  store.ThoughtStore
	addr   string
	logger *slog.Logger
}

// New creates a new API server
func New(s store.ThoughtStore, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, addr: addr, logger: logger.With("component", "api")}
}

// Handler returns the routed handler with CORS and request metrics applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Thoughts
	mux.HandleFunc("GET /thoughts", s.listThoughts)
	mux.HandleFunc("POST /thoughts", s.createThought)
	mux.HandleFunc("DELETE /thoughts", s.clearThoughts)
	mux.HandleFunc("PATCH /thoughts/{id}", s.updateThought)
	mux.HandleFunc("DELETE /thoughts/{id}", s.deleteThought)

	// Counter
	mux.HandleFunc("GET /counter", s.getCounter)
	mux.HandleFunc("PUT /counter", s.setCounter)
	mux.HandleFunc("POST /counter/cas", s.casCounter)

	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", metrics.Handler())

	return withCORS(s.withMetrics(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers for browser clients
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withMetrics(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", rec.status)
		}
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ThoughtsResponse is the response body for listing thoughts
type ThoughtsResponse struct {
	Thoughts []domain.Thought `json:"thoughts"`
}

// CounterBody carries the shared counter value
type CounterBody struct {
	Value int `json:"value"`
}

// CASRequest is the request body for a counter compare-and-swap
type CASRequest struct {
	Old int `json:"old"`
	New int `json:"new"`
}

// CASResponse reports whether the swap happened
type CASResponse struct {
	Swapped bool `json:"swapped"`
}

func (s *Server) listThoughts(w http.ResponseWriter, r *http.Request) {
	thoughts, err := s.store.ListThoughts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if thoughts == nil {
		thoughts = []domain.Thought{}
	}
	writeJSON(w, http.StatusOK, ThoughtsResponse{Thoughts: thoughts})
}

func (s *Server) createThought(w http.ResponseWriter, r *http.Request) {
	var t domain.Thought
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if domain.BlankText(t.Text) {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	t.Text = domain.TruncateText(t.Text)
	t.Size = domain.ClampSize(t.Size)

	created, err := s.store.CreateThought(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateThought(w http.ResponseWriter, r *http.Request) {
	var p domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Size != nil {
		size := domain.ClampSize(*p.Size)
		p.Size = &size
	}

	err := s.store.UpdateThought(r.Context(), r.PathValue("id"), p)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "thought not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) deleteThought(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteThought(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearThoughts(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAllThoughts(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCounter(w http.ResponseWriter, r *http.Request) {
	value, err := s.store.GetCounter(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CounterBody{Value: value})
}

func (s *Server) setCounter(w http.ResponseWriter, r *http.Request) {
	var body CounterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.SetCounter(r.Context(), body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) casCounter(w http.ResponseWriter, r *http.Request) {
	var req CASRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	swapped, err := s.store.CompareAndSwapCounter(r.Context(), req.Old, req.New)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CASResponse{Swapped: swapped})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
