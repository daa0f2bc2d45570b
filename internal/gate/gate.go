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

package gate

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/conclave-labs/conclave"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "gate")

	// Load the signer directory
	provider, err := directory.NewStaticProviderFromFile(cfg.DirectoryFile)
	if err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}

	approvalWindow, err := cfg.ParseApprovalWindow()
	if err != nil {
		return err
	}
	tickInterval, err := cfg.ParseTickInterval()
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ParseShutdownTimeout()
	if err != nil {
		return err
	}

	g, err := conclave.New(
		conclave.NewConfig(
			conclave.WithLogger(logger),
			conclave.WithDataDir(cfg.DatabasePath),
			conclave.WithDirectoryProvider(provider),
			conclave.WithApprovalWindow(approvalWindow),
			conclave.WithTickInterval(tickInterval),
			conclave.WithApiHost(cfg.BindAddr),
			conclave.WithApiPort(cfg.ApiPort),
			conclave.WithShutdownTimeout(shutdownTimeout),
			conclave.WithTracing(cfg.Tracing),
			conclave.WithTracingStdout(cfg.TracingStdout),
			// Enable metrics with default prometheus registry
			conclave.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run gate in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := g.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		if err := g.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("gate stopped")
			if err := g.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("gate error", "error", err)
		signalCtxStop()
		if stopErr := g.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		return err
	}
}
