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

package policy

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/database/models"
	"github.com/conclave-labs/conclave/event"
)

const ConfigurationUpdatedEventType event.EventType = "policy.configuration_updated"

// ConfigurationUpdatedEvent is published after every successful policy save.
// It carries signer IDs only, never names or emails, so audit payloads stay
// free of PII.
type ConfigurationUpdatedEvent struct {
	Actor             string
	Type              Type
	RequiredApprovals int
	SignerIds         []string
}

type StoreConfig struct {
	Logger   *slog.Logger
	EventBus *event.Bus
	Database *database.Database
}

// Store persists and retrieves the single active consensus configuration
type Store struct {
	logger   *slog.Logger
	eventBus *event.Bus
	db       *database.Database
}

func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		eventBus: cfg.EventBus,
		db:       cfg.Database,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		s.logger = cfg.Logger
	}
	return s
}

// Save validates the configuration and replaces the active one wholesale.
// A successful save publishes a ConfigurationUpdated event with the actor
// that requested the change.
func (s *Store) Save(cfg *Config, actor string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := s.db.SetActiveConsensusConfig(&models.ConsensusConfig{
		Type:              string(cfg.Type),
		RequiredApprovals: cfg.RequiredApprovals,
		SignerIds:         slices.Clone(cfg.SignerIds),
	})
	if err != nil {
		return fmt.Errorf("failed to persist consensus configuration: %w", err)
	}
	s.logger.Info(
		"consensus configuration updated",
		"type", cfg.Type,
		"required", cfg.RequiredApprovals,
		"signers", len(cfg.SignerIds),
		"actor", actor,
		"component", "policy",
	)
	if s.eventBus != nil {
		s.eventBus.Publish(
			ConfigurationUpdatedEventType,
			event.NewEvent(
				ConfigurationUpdatedEventType,
				ConfigurationUpdatedEvent{
					Actor:             actor,
					Type:              cfg.Type,
					RequiredApprovals: cfg.RequiredApprovals,
					SignerIds:         slices.Clone(cfg.SignerIds),
				},
			),
		)
	}
	return nil
}

// Load returns the active configuration, or nil if none has been saved yet.
// Callers presenting a configuration screen should fall back to
// DefaultConfig; callers gating an action must refuse instead.
func (s *Store) Load() (*Config, error) {
	row, err := s.db.GetActiveConsensusConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load consensus configuration: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return &Config{
		Type:              Type(row.Type),
		RequiredApprovals: row.RequiredApprovals,
		SignerIds:         slices.Clone(row.SignerIds),
	}, nil
}
