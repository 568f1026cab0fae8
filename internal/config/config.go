// Package config loads process configuration from environment variables
// with explicit defaults. No third-party config library is wired: no
// example in the retrieved corpus imports one (viper, envconfig, cobra),
// and the teacher's own services favor plain constructors
// (net.New(address, port, engine)) over declarative config — this keeps
// that idiom (DESIGN.md).
package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"matchcore/internal/common"
)

// Config is the full set of knobs cmd/matchcored reads at startup.
type Config struct {
	// ListenAddr is the TCP address the order-entry server binds.
	ListenAddr string
	// MetricsAddr is the HTTP address the Prometheus /metrics endpoint
	// binds. Load always sets it, falling back to defaultMetricsAddr.
	MetricsAddr string
	// Workers is the size of the connection-reading worker pool.
	Workers int
	// Symbols, when non-empty, is the complete set of symbol ids the
	// server accepts NewOrder/CancelOrder requests for; anything else is
	// rejected at the transport before it reaches the engine. Empty means
	// no restriction.
	Symbols map[common.SymbolID]struct{}
}

const (
	defaultListenAddr  = "0.0.0.0:9001"
	defaultMetricsAddr = "0.0.0.0:9090"
	defaultWorkers     = 10
)

// Load reads MATCHCORE_ADDR, MATCHCORE_PORT, MATCHCORE_METRICS_ADDR,
// MATCHCORE_WORKERS and MATCHCORE_SYMBOLS, falling back to sane defaults
// for anything unset. A MATCHCORE_WORKERS value that is not a positive
// integer also falls back to the default; the address and port values are
// used as given.
func Load() Config {
	cfg := Config{
		ListenAddr:  defaultListenAddr,
		MetricsAddr: defaultMetricsAddr,
		Workers:     defaultWorkers,
	}

	if v := os.Getenv("MATCHCORE_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MATCHCORE_PORT"); v != "" {
		cfg.ListenAddr = withPort(cfg.ListenAddr, v)
	}
	if v := os.Getenv("MATCHCORE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("MATCHCORE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("MATCHCORE_SYMBOLS"); v != "" {
		cfg.Symbols = parseSymbols(v)
	}

	return cfg
}

// withPort overrides just the port of addr, keeping its host, so
// MATCHCORE_PORT can be set on its own (e.g. a container image that bakes
// in the bind host but leaves the port to the environment).
func withPort(addr, port string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return net.JoinHostPort(host, port)
}

// parseSymbols reads a comma-separated list of symbol ids. An entry that
// fails to parse is skipped rather than failing startup over one typo.
func parseSymbols(v string) map[common.SymbolID]struct{} {
	symbols := make(map[common.SymbolID]struct{})
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		symbols[common.SymbolID(n)] = struct{}{}
	}
	return symbols
}
