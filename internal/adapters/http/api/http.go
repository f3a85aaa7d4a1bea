// Package api serves the operational HTTP surface: health, metrics, stats and
// manual task triggers.
package api

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fightlens/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wires HTTP routes for the analyzer.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	tasksHandler  *TasksHandler
}

// NewServer creates a new API server with all handlers. runner may be nil,
// in which case manual task runs are not exposed.
func NewServer(statsProvider StatsProvider, runner TaskRunner, checks ...Check) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(checks...),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	if runner != nil {
		s.tasksHandler = NewTasksHandler(runner)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	if s.tasksHandler != nil {
		mux.HandleFunc("POST /tasks/{name}/run", MetricsMiddleware(s.tasksHandler.HandleRun, "tasks"))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
