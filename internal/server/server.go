// Package web exposes the current snapshot and recent changes over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"linkwatch/internal/model"
	"linkwatch/internal/store"
)

type Server struct {
	store  store.Store
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

func NewServer(st store.Store, logger *zap.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/api/changes", s.handleChanges).Methods("GET")
	s.router.HandleFunc("/api/run", s.handleRun).Methods("GET")
}

// Start launches the HTTP server
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Status server listening", zap.String("addr", port))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.LoadReport(r.Context())
	if errors.Is(err, store.ErrNoSnapshot) {
		http.Error(w, "No report captured yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load report", zap.Error(err))
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	changes, err := s.store.RecentChanges(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list changes", zap.Error(err))
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	if changes == nil {
		changes = []model.Change{}
	}
	s.writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.LastRun(r.Context())
	if err != nil {
		s.logger.Error("Failed to load run info", zap.Error(err))
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	if info == nil {
		http.Error(w, "No run recorded yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
