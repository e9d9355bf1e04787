package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llmlab/internal/api"
	"llmlab/internal/registry"
	"llmlab/internal/store"
	"llmlab/internal/worker"
)

// main launches llmlabd.
func main() {
	os.Exit(run())
}

// run executes llmlabd and returns an exit code.
func run() int {
	configPath := flag.String("config", "config.yaml", "path to llmlabd config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st := store.New(nil, storeTTL(cfg))
	if cfg.Store.SnapshotPath != "" {
		if err := st.Load(cfg.Store.SnapshotPath); err != nil {
			fmt.Fprintf(os.Stderr, "snapshot load error: %v\n", err)
			return 1
		}
	}

	pool := worker.NewPool(st, logger, cfg.Workers.QueueSize)
	reg := registry.New(st, pool)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pool.Start(ctx, cfg.Workers.Count)

	// Periodic sweep bounds memory; lookups already expire lazily.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Sweep()
			}
		}
	}()

	handler := api.NewHandler(api.Config{
		Store:              st,
		Registry:           reg,
		Logger:             logger,
		Now:                time.Now,
		PollInterval:       pollInterval(cfg),
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		CORSOrigins:        cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	pool.Stop()

	if cfg.Store.SnapshotPath != "" {
		if err := st.Save(cfg.Store.SnapshotPath); err != nil {
			fmt.Fprintf(os.Stderr, "snapshot save error: %v\n", err)
		}
	}
	return 0
}
