// Package api exposes the supervision system over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"master-agent/internal/models"
	"master-agent/internal/risk"
	"master-agent/internal/supervisor"
)

// Reporter is the slice of the supervisor the handlers call.
type Reporter interface {
	ListAgents() []supervisor.AgentSummary
	Report(positionReturns []risk.PositionReturns) supervisor.RiskReport
}

// PositionReader is the slice of the ledger the handlers call.
type PositionReader interface {
	Positions() []models.Position
	Exposure() float64
	Count() int
}

// Server wires the HTTP routes to the supervision core.
type Server struct {
	log        zerolog.Logger
	supervisor Reporter
	positions  PositionReader
}

// NewServer creates the API server.
func NewServer(sup Reporter, positions PositionReader, log zerolog.Logger) *Server {
	return &Server{log: log, supervisor: sup, positions: positions}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoveryMiddleware)
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	router.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	router.HandleFunc("/risk", s.handleRisk).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.ListAgents())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": s.positions.Positions(),
		"exposure":  s.positions.Exposure(),
		"count":     s.positions.Count(),
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	// Per-position return series are not collected yet, so the report gets
	// one entry per open position for the count and skips correlations.
	open := s.positions.Positions()
	positionReturns := make([]risk.PositionReturns, len(open))
	for i, p := range open {
		positionReturns[i] = risk.PositionReturns{Symbol: p.Symbol}
	}
	writeJSON(w, http.StatusOK, s.supervisor.Report(positionReturns))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
