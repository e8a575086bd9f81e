// Package main is the entry point for the webpool demo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jchen17/webpool/internal/config"
	poolerrors "github.com/jchen17/webpool/internal/errors"
	"github.com/jchen17/webpool/internal/logger"
	"github.com/jchen17/webpool/internal/server"
	"github.com/jchen17/webpool/pkg/pool"
)

var version = "dev"

func main() {
	var (
		configFile  = flag.String("config", "", "config file path (YAML/JSON)")
		addr        = flag.String("addr", "", "listen address (overrides config)")
		workers     = flag.Int("workers", 0, "pool size (overrides config)")
		showVersion = flag.Bool("version", false, "print version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("webpool version %s\n", version)
		return
	}

	if err := run(*configFile, *addr, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "webpool: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, addr string, workers int) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if workers > 0 {
		cfg.PoolSize = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	submitTimeout, err := cfg.ParseSubmitTimeout()
	if err != nil {
		return err
	}

	registry := poolerrors.NewRegistry(log)
	handler := registry.Default()
	if cfg.ErrorHandler != "" {
		handler, err = registry.Get(cfg.ErrorHandler)
		if err != nil {
			return fmt.Errorf("invalid error_handler: %w", err)
		}
	}

	p, err := pool.New(&pool.Config{
		PoolSize:      cfg.PoolSize,
		QueueBound:    cfg.QueueBound,
		SubmitTimeout: submitTimeout,
		ErrorHandler:  handler,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The pool runs on its own context so cancelling the accept loop
	// still lets queued connections drain during Close.
	if err := p.Start(context.Background()); err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("pool close: %v", err)
		}
	}()

	srv, err := server.New(cfg, p, nil, log)
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM cancels the accept loop; the pool then drains.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received %s, shutting down", sig)
		cancel()
	}()

	return srv.ListenAndServe(ctx)
}
