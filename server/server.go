// Package server serves the results directory and a small JSON API over the
// latest report.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"drinklog/models"
	"drinklog/storage"
	"drinklog/utils"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the artifacts written by a report run.
type Server struct {
	dir    string
	logger *utils.Logger
	router *mux.Router
}

func New(resultsDir string, logger *utils.Logger) *Server {
	s := &Server{dir: resultsDir, logger: logger, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/api/locations", s.handleLocations).Methods("GET")
	s.router.HandleFunc("/api/locations/{region}", s.handleLocation).Methods("GET")

	// Static artifacts
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.dir))).Methods("GET", "HEAD")
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Serving %s on %s", s.dir, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("[server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w)
	if !ok {
		return
	}
	locations := report.Locations
	if locations == nil {
		locations = []models.LocationAggregate{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]

	report, ok := s.loadReport(w)
	if !ok {
		return
	}
	for _, loc := range report.Locations {
		if strings.EqualFold(string(loc.Location), region) {
			writeJSON(w, http.StatusOK, loc)
			return
		}
	}
	http.Error(w, "unknown region "+region, http.StatusNotFound)
}

// loadReport reads the summary on every request so a new run shows up
// without a restart.
func (s *Server) loadReport(w http.ResponseWriter) (*models.Report, bool) {
	report, err := storage.ReadSummary(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no report yet, run the pipeline first", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.logger.Error("[server] Load summary: %v", err)
		http.Error(w, "could not load report", http.StatusInternalServerError)
		return nil, false
	}
	return report, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("[server] %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
