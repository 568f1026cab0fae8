// Command matchcored runs the order-entry TCP server and its Prometheus
// metrics endpoint in front of a single matching engine instance.
// Grounded on the teacher's cmd/server/server.go wiring.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchcore/internal/config"
	"matchcore/internal/engine"
	"matchcore/internal/metrics"
	"matchcore/internal/net"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg := config.Load()
	eng := engine.New()
	collector := metrics.New()

	go func() {
		if err := collector.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.Error().Err(err).Msg("metrics server exited")
		}
	}()

	srv := net.New(cfg.ListenAddr, eng, collector, cfg.Workers, cfg.Symbols)
	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Int("workers", cfg.Workers).
		Msg("matchcored starting")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}
