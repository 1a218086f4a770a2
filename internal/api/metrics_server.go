package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsServer exposes the Prometheus registry on its own listener,
// separate from the admin API, so scrapers keep working when the API
// surface is disabled and never need an API key.
type MetricsServer struct {
	server *http.Server
	logger zerolog.Logger
}

func NewMetricsServer(port int, logger zerolog.Logger) *MetricsServer {
	if port == 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the metrics mux. Exposed for tests.
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *MetricsServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Metrics listener started")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
