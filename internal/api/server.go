// Package api serves the operational HTTP surface: Prometheus metrics
// and a health endpoint aggregating adapter status.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/adapters"
)

// TrackedCounter is satisfied by the scheduler.
type TrackedCounter interface {
	TrackedCount() int
}

// Server is the metrics/health listener.
type Server struct {
	http *http.Server
}

type healthResponse struct {
	Status        string                  `json:"status"`
	TrackedEvents int                     `json:"tracked_events"`
	Adapters      []adapters.HealthStatus `json:"adapters"`
	Timestamp     time.Time               `json:"timestamp"`
}

// New wires the routes.
func New(addr string, adp []adapters.Adapter, tracker TrackedCounter) *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler(adp, tracker)).Methods(http.MethodGet)

	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func healthHandler(adp []adapters.Adapter, tracker TrackedCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
		}
		if tracker != nil {
			resp.TrackedEvents = tracker.TrackedCount()
		}
		for _, a := range adp {
			status := a.Health()
			resp.Adapters = append(resp.Adapters, status)
			if !status.Healthy {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Debug().Err(err).Msg("writing health response failed")
		}
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("http server stopped")
	}
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
