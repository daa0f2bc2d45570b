// Copyright 2026 Conclave Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package conclave wires the approval gate together: signer directory,
// consensus policy, approval sessions, audit fan-out, and the HTTP API.
package conclave

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conclave-labs/conclave/api"
	"github.com/conclave-labs/conclave/audit"
	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/event"
	"github.com/conclave-labs/conclave/policy"
	"github.com/conclave-labs/conclave/session"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultTickInterval = 1 * time.Second

type Gate struct {
	config        Config
	eventBus      *event.Bus
	db            *database.Database
	directory     *directory.Directory
	policyStore   *policy.Store
	sessions      *session.Manager
	notifier      *audit.Notifier
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	tickStop      chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	g := &Gate{
		config:   cfg,
		eventBus: event.NewBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
		tickStop: make(chan struct{}),
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir: cfg.dataDir,
		Logger:  cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	g.db = db
	// Configure directory
	g.directory = directory.NewDirectory(directory.DirectoryConfig{
		Logger:   cfg.logger,
		Provider: cfg.directoryProvider,
	})
	// Configure policy store
	g.policyStore = policy.NewStore(policy.StoreConfig{
		Logger:   cfg.logger,
		EventBus: g.eventBus,
		Database: g.db,
	})
	// Configure session manager
	g.sessions = session.NewManager(session.ManagerConfig{
		Logger:         cfg.logger,
		EventBus:       g.eventBus,
		PromRegistry:   cfg.promRegistry,
		Database:       g.db,
		Directory:      g.directory,
		PolicyStore:    g.policyStore,
		ApprovalWindow: cfg.approvalWindow,
	})
	// Configure audit fan-out
	sinks := []audit.Sink{
		audit.NewSlogSink(cfg.logger),
		audit.NewDatabaseSink(g.db),
	}
	sinks = append(sinks, cfg.auditSinks...)
	g.notifier = audit.NewNotifier(audit.NotifierConfig{
		Logger:   cfg.logger,
		EventBus: g.eventBus,
		Sinks:    sinks,
	})
	return g, nil
}

func (g *Gate) Run() error {
	// Configure tracing
	if g.config.tracing {
		if err := g.setupTracing(); err != nil {
			return err
		}
	}
	// Reload any sessions left open by a previous run
	if err := g.sessions.Recover(); err != nil {
		return fmt.Errorf("failed to recover sessions: %w", err)
	}
	// Start audit fan-out
	g.notifier.Start()
	// Start HTTP API
	if g.config.apiPort > 0 {
		var promGatherer prometheus.Gatherer
		if registry, ok := g.config.promRegistry.(prometheus.Gatherer); ok {
			promGatherer = registry
		}
		g.api = api.NewApi(api.ApiConfig{
			Logger:       g.config.logger,
			Host:         g.config.apiHost,
			Port:         g.config.apiPort,
			PromGatherer: promGatherer,
			Directory:    g.directory,
			PolicyStore:  g.policyStore,
			Sessions:     g.sessions,
		})
		go func() {
			if err := g.api.Start(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				g.config.logger.Error(
					"API server failed",
					"error", err,
					"component", "api",
				)
			}
		}()
	}
	// Start the expiry sweep
	go g.tickLoop()

	// Wait for shutdown signal
	<-g.done
	return nil
}

// tickLoop periodically expires sessions whose approval window has lapsed
func (g *Gate) tickLoop() {
	interval := g.config.tickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.tickStop:
			return
		case now := <-ticker.C:
			g.sessions.Tick(now)
		}
	}
}

// Sessions returns the session manager for embedded use
func (g *Gate) Sessions() *session.Manager {
	return g.sessions
}

// PolicyStore returns the consensus policy store for embedded use
func (g *Gate) PolicyStore() *policy.Store {
	return g.policyStore
}

// Directory returns the signer directory for embedded use
func (g *Gate) Directory() *directory.Directory {
	return g.directory
}

// EventBus returns the gate's event bus for embedded use
func (g *Gate) EventBus() *event.Bus {
	return g.eventBus
}

func (g *Gate) Stop() error {
	var err error
	g.shutdownOnce.Do(func() {
		err = g.shutdown()
	})
	return err
}

func (g *Gate) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if g.config.shutdownTimeout > 0 {
		shutdownTimeout = g.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	g.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	g.config.logger.Debug("shutdown phase 1: stopping new work")

	close(g.tickStop)

	if g.api != nil {
		if stopErr := g.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain event fan-out
	g.config.logger.Debug("shutdown phase 2: draining events")

	if g.notifier != nil {
		g.notifier.Stop()
	}

	if g.eventBus != nil {
		g.eventBus.Stop()
	}

	// Phase 3: Close database
	g.config.logger.Debug("shutdown phase 3: closing database")

	if g.db != nil {
		if closeErr := g.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	g.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range g.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	g.shutdownFuncs = nil

	g.config.logger.Debug("graceful shutdown complete")
	close(g.done)
	return err
}
