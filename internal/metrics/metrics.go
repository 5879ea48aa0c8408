// Package metrics holds the Prometheus collectors shared by the canvas
// engine, the sync queue and the HTTP server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flux_ticks_total",
		Help: "Animation ticks applied to the canvas",
	})

	SkippedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flux_ticks_skipped_total",
		Help: "Ticks skipped because the canvas was not measured or too small",
	})

	ThoughtsMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flux_thoughts_moved_total",
		Help: "Thought displacements applied by the motion integrator",
	})

	BouncesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flux_bounces_total",
		Help: "Axis reflections against the canvas edges",
	})

	ActiveThoughts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flux_thoughts_active",
		Help: "Thoughts currently held on the canvas",
	})

	SyncOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flux_sync_operations_total",
		Help: "Persistence operations sent to the thought store by op and status",
	}, []string{"op", "status"})

	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flux_sync_duration_seconds",
		Help:    "Duration of persistence operations",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"op"})

	SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flux_sync_queue_depth",
		Help: "Persistence operations waiting to be sent",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flux_http_requests_total",
		Help: "HTTP requests served by route and status",
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
