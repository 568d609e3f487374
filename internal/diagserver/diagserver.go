package diagserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/health"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// Health runs a health pass on demand.
type Health interface {
	Check() health.Report
}

// Stats summarizes the live store.
type Stats interface {
	Statistics() (storage.Stats, error)
}

// Server exposes the operational endpoints: /healthz, /stats and
// Prometheus /metrics. It carries no booking operations; those stay on
// the CLI.
type Server struct {
	health Health
	stats  Stats
	logger *zap.Logger
	server *http.Server
}

func New(addr string, health Health, stats Stats, logger *zap.Logger) *Server {
	s := &Server{
		health: health,
		stats:  stats,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Run() error {
	s.logger.Info("diagnostics server listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// handleHealth serves the full report. Critical and error states answer
// 503 so a plain probe can alert without parsing the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check()

	code := http.StatusOK
	if report.Status == health.StatusCritical || report.Status == health.StatusError {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Statistics()
	if err != nil {
		s.logger.Error("stats endpoint failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
