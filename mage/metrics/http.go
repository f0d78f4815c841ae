package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler serves /metrics from g and a /healthz probe.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := chi.NewMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("mage\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens on addr and serves Handler(g) until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "metrics: listen")
	}
	srv := http.Server{
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info("metrics listening", zap.Stringer("addr", l.Addr()))
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	<-ctx.Done()
	return srv.Shutdown(context.Background())
}
