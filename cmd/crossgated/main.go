package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perch-io/crossgate/internal/gate/common/clock"
	"github.com/perch-io/crossgate/internal/gate/common/log"
	"github.com/perch-io/crossgate/internal/gate/config"
	"github.com/perch-io/crossgate/internal/gate/domain"
	"github.com/perch-io/crossgate/internal/gate/repos/identcache"
	"github.com/perch-io/crossgate/internal/gate/repos/lastreq"
	"github.com/perch-io/crossgate/internal/gate/repos/ledger"
	"github.com/perch-io/crossgate/internal/gate/repos/provenance"
	"github.com/perch-io/crossgate/internal/gate/repos/rules"
	"github.com/perch-io/crossgate/internal/gate/repos/rules/bolt"
	"github.com/perch-io/crossgate/internal/gate/services/engine"
)

const (
	version = "0.1.0-dev"
	appName = "crossgated"
)

// Application holds the wired-up engine and its rule store, serving a
// line-oriented check protocol on stdin. It stands in for the browser
// host: useful for debugging rule sets and for batch evaluation.
type Application struct {
	config   *config.AppConfig
	engine   *engine.Engine
	store    *rules.Store
	provider *bolt.Provider
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":     version,
		"env":         cfg.Env,
		"log_level":   cfg.LogLevel,
		"ident_level": cfg.IdentLevel,
		"store_path":  cfg.StorePath,
	}, "Starting crossgate mediation engine")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}
	defer func() {
		if err := app.provider.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing rule store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal(map[string]any{"error": err}, "Command loop failed")
	}

	log.Info(nil, "crossgate stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	level, err := domain.ParseIdentLevel(cfg.IdentLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid identification level: %w", err)
	}

	provider, err := bolt.New(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %w", err)
	}

	logger := log.GetLogger()

	store := rules.New(provider, logger)
	if err := store.LoadPersisted(); err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to load persisted rules: %w", err)
	}

	ident, err := identcache.New(int(cfg.IdentCacheSize), level)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create identifier cache: %w", err)
	}

	clk := &clock.RealClock{}
	led := ledger.New(ident.Identify, logger)
	prov := provenance.New()
	supp := lastreq.New(clk, time.Duration(cfg.SuppressWindowMs)*time.Millisecond)

	eng := engine.New(engine.Options{
		Rules:             store,
		Ledger:            led,
		Provenance:        prov,
		Identifier:        ident,
		Suppressor:        supp,
		Logger:            logger,
		PrivilegedOrigins: cfg.PrivilegedOrigins,
		MaxRedirectWalk:   int(cfg.MaxRedirectWalk),
	})

	return &Application{
		config:   cfg,
		engine:   eng,
		store:    store,
		provider: provider,
	}, nil
}

// Run reads commands line by line until EOF, QUIT, or cancellation.
func (app *Application) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			reply, quit := app.execute(line)
			if reply != "" {
				fmt.Fprintln(out, reply)
			}
			if quit {
				return nil
			}
		}
	}
}
