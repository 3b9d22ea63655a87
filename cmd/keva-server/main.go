// main.go is the entry point for the keva server. It wires together the
// configuration, the segmented store, the client registry, and the TCP
// server.
//
// Configuration resolves in three layers: built-in defaults, then an
// optional YAML file (-config), then KEVA_-prefixed environment variables.
// The -addr and -segments flags override all three, following the rule
// that the most explicit setting wins.

package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"keva.lopezb.com/internal/keva/config"
	"keva.lopezb.com/internal/keva/store"
)

type application struct {
	config        config.Config
	logger        *slog.Logger
	listener      net.Listener
	store         *store.Store
	registry      *ClientRegistry
	router        *Router
	metrics       *Metrics
	readyCh       chan struct{}
	wg            sync.WaitGroup
	connSem       *semaphore.Weighted
	acceptLimiter *rate.Limiter
}

// newApplication assembles a server from a validated configuration.
func newApplication(cfg config.Config, logger *slog.Logger) (*application, error) {
	st, err := store.New(cfg.Segments)
	if err != nil {
		return nil, err
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		store:    st,
		registry: NewClientRegistry(),
		metrics:  NewMetrics(),
		connSem:  semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
	if cfg.AcceptRate > 0 {
		app.acceptLimiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptRate)
	}
	app.router = app.commands()

	return app, nil
}

func main() {
	var (
		configPath string
		addr       string
		segments   int
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&addr, "addr", "", "TCP listen address (overrides config)")
	flag.IntVar(&segments, "segments", 0, "Store segment count, a power of two (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if segments != 0 {
		cfg.Segments = segments
	}
	if err := cfg.Validate(); err != nil {
		slog.New(slog.NewTextHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	if err := app.serve(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
