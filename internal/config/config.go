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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "conclave.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultApprovalWindow  = "300s"
	DefaultTickInterval    = "1s"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	DirectoryFile   string `yaml:"directoryFile"   split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	ApiPort         uint   `yaml:"apiPort"         split_words:"true"`
	ApprovalWindow  string `yaml:"approvalWindow"  split_words:"true"`
	TickInterval    string `yaml:"tickInterval"    split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
}

// ParseApprovalWindow returns the approval window as a duration
func (c *Config) ParseApprovalWindow() (time.Duration, error) {
	if c.ApprovalWindow == "" {
		c.ApprovalWindow = DefaultApprovalWindow
	}
	window, err := time.ParseDuration(c.ApprovalWindow)
	if err != nil {
		return 0, fmt.Errorf("invalid approval window: %w", err)
	}
	if window <= 0 {
		return 0, fmt.Errorf(
			"invalid approval window: %q must be positive",
			c.ApprovalWindow,
		)
	}
	return window, nil
}

// ParseTickInterval returns the expiry sweep interval as a duration
func (c *Config) ParseTickInterval() (time.Duration, error) {
	if c.TickInterval == "" {
		c.TickInterval = DefaultTickInterval
	}
	interval, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid tick interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf(
			"invalid tick interval: %q must be positive",
			c.TickInterval,
		)
	}
	return interval, nil
}

// ParseShutdownTimeout returns the graceful shutdown timeout as a duration
func (c *Config) ParseShutdownTimeout() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	timeout, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return timeout, nil
}

var globalConfig = &Config{
	DatabasePath:    ".conclave",
	DirectoryFile:   "directory.yaml",
	BindAddr:        "0.0.0.0",
	ApiPort:         8080,
	ApprovalWindow:  DefaultApprovalWindow,
	TickInterval:    DefaultTickInterval,
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.conclave/conclave.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".conclave", "conclave.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/conclave/conclave.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/conclave/conclave.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("conclave", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Validate durations up front so bad values fail at startup
	if _, err := globalConfig.ParseApprovalWindow(); err != nil {
		return nil, err
	}
	if _, err := globalConfig.ParseTickInterval(); err != nil {
		return nil, err
	}
	if _, err := globalConfig.ParseShutdownTimeout(); err != nil {
		return nil, err
	}

	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
