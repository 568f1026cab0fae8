// Package metrics exposes the engine's throughput and latency as
// Prometheus metrics, scaled down from the OpenTelemetry pipeline in the
// retrieved crypto-browser repo to a plain prometheus.Registry — this
// repo has no OTel collector downstream of it (DESIGN.md).
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Collector holds every counter/histogram the transport touches.
type Collector struct {
	registry *prometheus.Registry

	OrdersTotal   *prometheus.CounterVec
	FillsTotal    prometheus.Counter
	FillQuantity  prometheus.Histogram
	CancelsTotal  *prometheus.CounterVec
	MatchDuration prometheus.Histogram
}

// New registers and returns a fresh Collector.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "orders_total",
			Help:      "Orders received, by type, side and outcome.",
		}, []string{"type", "side", "outcome"}),
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "fills_total",
			Help:      "Total fills emitted by the engine.",
		}),
		FillQuantity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matchcore",
			Name:      "fill_quantity",
			Help:      "Distribution of per-fill quantities.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}),
		CancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "cancels_total",
			Help:      "Cancel requests handled, by outcome.",
		}, []string{"outcome"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matchcore",
			Name:      "match_duration_seconds",
			Help:      "Wall-clock time spent inside a single OnOrder call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.OrdersTotal,
		c.FillsTotal,
		c.FillQuantity,
		c.CancelsTotal,
		c.MatchDuration,
	)
	return c
}

// Serve starts a /metrics HTTP endpoint on addr and blocks until ctx is
// canceled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
