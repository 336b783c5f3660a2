package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubev2v/doc-processor/pkg/log"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pinger checks the broker connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter serves /metrics from gatherer and /health, which answers 200
// only while the broker ping succeeds.
func NewRouter(gatherer prometheus.Gatherer, pinger Pinger) http.Handler {
	router := chi.NewRouter()
	router.Use(
		log.Logger(zap.L(), "metrics_server"),
		httpMiddleware.Handler,
	)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return router
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(listener net.Listener, pinger Pinger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              listener.Addr().String(),
			Handler:           NewRouter(prometheus.DefaultGatherer, pinger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("metrics_server").Infof("serving metrics: %s", s.listener.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.httpServer.SetKeepAlivesEnabled(false)
		_ = s.httpServer.Shutdown(shutdownCtx)
		zap.S().Named("metrics_server").Info("metrics server terminated")
	}()

	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
