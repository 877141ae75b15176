// Package api provides HTTP handlers and the main API server logic for
// FlowCanvas.
//
// It exposes RESTful endpoints for editing conversation-flow graphs
// (nodes, edges, options, layout, undo), for running scripted preview
// simulations, and for exporting/importing flow snapshots. Editing sessions
// are opened lazily per flow and mutate optimistically; repository writes
// are queued behind the scenes by the editor package.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/FlowCanvas/internal/editor"
	"github.com/BTreeMap/FlowCanvas/internal/store"
)

// Server wires the repository, per-flow editing sessions and HTTP routing.
type Server struct {
	repo store.Repository

	mu       sync.Mutex
	sessions map[string]*editor.GraphStore

	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	writeFailures prometheus.Counter

	undoLimit int
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithUndoLimit overrides the undo stack depth of every editing session the
// server opens.
func WithUndoLimit(n int) ServerOption {
	return func(s *Server) { s.undoLimit = n }
}

// NewServer creates a Server over the given repository.
func NewServer(repo store.Repository, opts ...ServerOption) *Server {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_http_requests_total",
		Help: "HTTP requests received, by method.",
	}, []string{"method"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_graph_mutations_total",
		Help: "Graph store mutations accepted, by operation.",
	}, []string{"op"})
	writeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowcanvas_repository_write_failures_total",
		Help: "Queued repository writes that failed after the local mutation committed.",
	})
	registry.MustRegister(requests, mutations, writeFailures)

	s := &Server{
		repo:          repo,
		sessions:      make(map[string]*editor.GraphStore),
		registry:      registry,
		requests:      requests,
		mutations:     mutations,
		writeFailures: writeFailures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Get("/flows", s.listFlowsHandler)
	r.Post("/flows", s.createFlowHandler)
	r.Post("/flows/import", s.importFlowHandler)
	r.Route("/flows/{flowID}", func(r chi.Router) {
		r.Get("/", s.getFlowHandler)
		r.Get("/export", s.exportFlowHandler)
		r.Post("/nodes", s.addNodeHandler)
		r.Put("/layout", s.saveLayoutHandler)
		r.Post("/edges", s.addEdgeHandler)
		r.Post("/undo", s.undoHandler)
		r.Post("/simulate", s.simulateHandler)
	})
	r.Route("/nodes/{nodeID}", func(r chi.Router) {
		r.Patch("/", s.updateNodeHandler)
		r.Delete("/", s.deleteNodeHandler)
		r.Post("/duplicate", s.duplicateNodeHandler)
		r.Post("/options", s.addOptionHandler)
		r.Put("/options/order", s.reorderOptionsHandler)
	})
	r.Patch("/edges/{edgeID}", s.updateEdgeHandler)
	r.Delete("/edges/{edgeID}", s.deleteEdgeHandler)
	r.Patch("/options/{optionID}", s.updateOptionHandler)
	r.Delete("/options/{optionID}", s.deleteOptionHandler)

	return r
}

// Run serves the API on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	slog.Info("Server.Run: FlowCanvas API listening", "addr", addr)
	if err := http.ListenAndServe(addr, s.Router()); err != nil {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Close discards all editing sessions.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for flowID, session := range s.sessions {
		session.Close()
		delete(s.sessions, flowID)
	}
}

// session returns the editing session for the flow, opening one on first use.
func (s *Server) session(flowID string) (*editor.GraphStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[flowID]; ok {
		return session, nil
	}
	storeOpts := []editor.GraphStoreOption{
		editor.WithWriteErrorHandler(func(op string, err error) {
			s.writeFailures.Inc()
			slog.Error("Server: repository write failed, local state is ahead of durable storage",
				"flowID", flowID, "op", op, "error", err)
		}),
	}
	if s.undoLimit > 0 {
		storeOpts = append(storeOpts, editor.WithUndoLimit(s.undoLimit))
	}
	session, err := editor.NewGraphStore(s.repo, flowID, storeOpts...)
	if err != nil {
		return nil, err
	}
	s.sessions[flowID] = session
	return session, nil
}

// countMutation bumps the per-operation mutation counter.
func (s *Server) countMutation(op string) {
	s.mutations.WithLabelValues(op).Inc()
}

// requestLogger counts and logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.WithLabelValues(r.Method).Inc()
		slog.Debug("Server: request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
