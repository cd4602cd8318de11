// Package app is the composition root: it builds the logger, catalog,
// strategy registry, flow document and execution pipeline from a Config,
// and runs the flow.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/collect"
	"github.com/vk/flowgraph/internal/coordinator"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/guard"
	"github.com/vk/flowgraph/internal/remote"
	"github.com/vk/flowgraph/internal/statestore"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	catalog  *catalog.Catalog
	registry *executor.Registry
	doc      *graph.Document
	info     *graph.FlowInfo
	store    *statestore.Store
	service  *coordinator.Service
	client   remote.Client
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Startup problems (bad manifests, bad flow document, catalog/strategy
// mismatch) are fatal and panic; the CLI entrypoint recovers them into a
// clean exit.
func NewApp(outW io.Writer, cfg *Config, modules ...executor.Module) *App {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cat := catalog.New()
	if cfg.ManifestsPath != "" {
		if err := cat.LoadDir(ctx, cfg.ManifestsPath); err != nil {
			panic(fmt.Errorf("failed to load node type manifests: %w", err))
		}
	}

	reg := executor.NewRegistry()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.Load(modules...)

	if err := cat.ValidateAgainst(reg); err != nil {
		// Mismatch between manifests and compiled strategies is a
		// programmer error.
		panic(err)
	}
	logger.Debug("Catalog validation passed.")

	doc, info, err := graph.LoadFile(ctx, cat, cfg.FlowPath)
	if err != nil {
		panic(fmt.Errorf("failed to load flow document: %w", err))
	}
	logger.Info("Flow document loaded.", "nodes", len(doc.Nodes()), "edges", len(doc.Edges()))

	client := newClient(cfg)
	store := statestore.New(logger)
	runner := executor.NewRunner(reg, store, client)
	service := coordinator.New(info.ID, doc, cat, store,
		guard.New(doc, cat, store, nil),
		collect.New(doc, store),
		runner)

	return &App{
		outW:     outW,
		logger:   logger,
		catalog:  cat,
		registry: reg,
		doc:      doc,
		info:     info,
		store:    store,
		service:  service,
		client:   client,
	}
}

// newClient picks the backend transport from the config.
func newClient(cfg *Config) remote.Client {
	if cfg.Transport == "socketio" {
		return remote.NewSocketIOClient(cfg.BackendURL, "", 60*time.Second)
	}
	var opts []remote.HTTPOption
	if cfg.AuthToken != "" {
		opts = append(opts, remote.WithAuthToken(cfg.AuthToken))
	}
	return remote.NewHTTPClient(cfg.BackendURL, opts...)
}

// Catalog returns the application's catalog. This is primarily for testing.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Service returns the execution coordinator. This is primarily for testing.
func (a *App) Service() *coordinator.Service {
	return a.service
}
