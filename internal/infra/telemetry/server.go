package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultStatusAddr     = "127.0.0.1:9464"
	statusShutdownTimeout = 5 * time.Second
)

// HealthReporter supplies the report served on /healthz.
type HealthReporter interface {
	Report() HealthReport
}

// StatusServerOptions picks the endpoints to expose. A nil source disables
// its endpoint.
type StatusServerOptions struct {
	Addr    string
	Metrics prometheus.Gatherer
	Health  HealthReporter
}

// StatusServer exposes metrics and the latest run outcome while mcpscout
// watches its config.
type StatusServer struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// ListenStatusServer binds the listener up front so address problems surface
// before discovery starts. It returns nil when no endpoint is enabled.
func ListenStatusServer(opts StatusServerOptions, logger *zap.Logger) (*StatusServer, error) {
	if opts.Metrics == nil && opts.Health == nil {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("status")

	addr := opts.Addr
	if addr == "" {
		addr = DefaultStatusAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	errorLog := zap.NewStdLog(logger)
	mux := http.NewServeMux()
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{
			ErrorLog:      errorLog,
			ErrorHandling: promhttp.ContinueOnError,
		}))
	}
	if opts.Health != nil {
		mux.Handle("GET /healthz", healthHandler(opts.Health))
	}

	return &StatusServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          errorLog,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

func (s *StatusServer) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until ctx is done and then drains in-flight requests.
func (s *StatusServer) Serve(ctx context.Context) error {
	served := make(chan error, 1)
	go func() {
		served <- s.server.Serve(s.listener)
	}()
	s.logger.Info("status server listening", zap.String("addr", s.Addr()))

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down status server: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}

// healthHandler answers 200 only after a successful run. Pending and
// degraded runs answer 503 with the same body.
func healthHandler(reporter HealthReporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		report := reporter.Report()
		code := http.StatusServiceUnavailable
		if report.Status == HealthStatusOK {
			code = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
}
