package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// Checks combines several readiness checkers; all must pass.
type Checks []sharedobs.ReadinessChecker

func (c Checks) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, checker := range c {
		if err := checker.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HistoryReader returns the stored readings in ascending time order.
type HistoryReader interface {
	GetAll() []domain.Reading
}

// Forecaster evaluates the storm heuristic over the current history.
type Forecaster interface {
	Forecast() domain.StormForecast
}

// Server exposes health, readiness, metrics, and reading history endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /readings, /readings/stream, and /forecast routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, history HistoryReader, forecaster Forecaster, feed *Feed, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /readings", handleReadings(history))
	mux.HandleFunc("GET /readings/stream", handleStream(feed, logger))
	mux.HandleFunc("GET /forecast", handleForecast(forecaster))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleReadings(history HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readings := history.GetAll()

		if v := r.URL.Query().Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
				return
			}
			readings = after(readings, since)
		}

		if readings == nil {
			readings = []domain.Reading{}
		}
		sharedobs.WriteJSON(w, http.StatusOK, readings)
	}
}

func handleForecast(forecaster Forecaster) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sharedobs.WriteJSON(w, http.StatusOK, forecaster.Forecast())
	}
}

// after returns the readings strictly later than t. readings must be ascending.
func after(readings []domain.Reading, t time.Time) []domain.Reading {
	for i, r := range readings {
		if r.Time.After(t) {
			return readings[i:]
		}
	}
	return nil
}
