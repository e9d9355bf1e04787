// Package apitest wires a complete in-memory server, with live workers, for
// end-to-end HTTP tests.
package apitest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llmlab/internal/api"
	"llmlab/internal/registry"
	"llmlab/internal/store"
	"llmlab/internal/worker"
)

// Env is a fully wired API server over an in-memory store with live workers.
type Env struct {
	Server   *httptest.Server
	Store    *store.Store
	Registry *registry.Registry
	Pool     *worker.Pool
}

// NewEnv starts an API server backed by real workers and registers cleanup.
// A fast poll interval keeps SSE tests snappy.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	st := store.New(nil, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := worker.NewPool(st, logger, 16)
	reg := registry.New(st, pool)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, 2)

	server := httptest.NewServer(api.NewHandler(api.Config{
		Store:        st,
		Registry:     reg,
		Logger:       logger,
		PollInterval: 10 * time.Millisecond,
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
		pool.Stop()
	})
	return &Env{Server: server, Store: st, Registry: reg, Pool: pool}
}

// NewEnvWithHandler serves a caller-built handler over the given store, for
// tests that need non-default handler configuration. No workers run.
func NewEnvWithHandler(t *testing.T, st *store.Store, handler http.Handler) *Env {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Env{Server: server, Store: st}
}
