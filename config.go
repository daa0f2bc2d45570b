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

package conclave

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/conclave-labs/conclave/audit"
	"github.com/conclave-labs/conclave/directory"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry      prometheus.Registerer
	logger            *slog.Logger
	directoryProvider directory.Provider
	auditSinks        []audit.Sink
	dataDir           string
	apiHost           string
	apiPort           uint
	approvalWindow    time.Duration
	tickInterval      time.Duration
	shutdownTimeout   time.Duration
	tracing           bool
	tracingStdout     bool
}

func (c *Config) validate() error {
	if c.directoryProvider == nil {
		return errors.New("no directory provider defined")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the gate config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new conclave config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithDirectoryProvider specifies the backing user/role store. This is required
func WithDirectoryProvider(provider directory.Provider) ConfigOptionFunc {
	return func(c *Config) {
		c.directoryProvider = provider
	}
}

// WithAuditSinks specifies additional audit sinks beyond the built-in logger
// and database sinks
func WithAuditSinks(sinks ...audit.Sink) ConfigOptionFunc {
	return func(c *Config) {
		c.auditSinks = append(c.auditSinks, sinks...)
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithApprovalWindow specifies how long sessions accept votes before
// expiring. The default is 300 seconds
func WithApprovalWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.approvalWindow = window
	}
}

// WithTickInterval specifies how often the expiry sweep runs. The default is
// 1 second
func WithTickInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.tickInterval = interval
	}
}

// WithApiHost specifies the host to bind the HTTP API listener to. This defaults to 0.0.0.0
func WithApiHost(host string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiHost = host
	}
}

// WithApiPort specifies the port for the HTTP API listener. Port 0 disables
// the listener, which is the default for embedded use
func WithApiPort(port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiPort = port
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
