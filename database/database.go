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

// Package database provides durable storage for the approval gate: a SQLite
// metadata store for configuration, sessions, votes, and audit entries, and
// a Badger blob store for opaque action payloads.
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/conclave-labs/conclave/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Config struct {
	DataDir string
	Logger  *slog.Logger
}

type Database struct {
	logger   *slog.Logger
	blob     *BlobStore
	metadata *MetadataStore
	dataDir  string
}

// New creates a new database instance with optional persistence using the
// provided data directory
func New(cfg *Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataDb, err := NewMetadataStore(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	blobDb, err := NewBlobStore(cfg.DataDir, logger)
	if err != nil {
		// Don't leak the metadata connection on partial failure
		metadataDb.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}, nil
}

// Blob returns the underlying blob store instance
func (d *Database) Blob() *BlobStore {
	return d.blob
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() *MetadataStore {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	err = errors.Join(err, d.metadata.Close())
	err = errors.Join(err, d.blob.Close())
	return err
}

// GetActiveConsensusConfig returns the current consensus configuration, or
// nil if none has been saved yet
func (d *Database) GetActiveConsensusConfig() (*models.ConsensusConfig, error) {
	var cfg models.ConsensusConfig
	result := d.metadata.DB().Order("id DESC").First(&cfg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &cfg, nil
}

// SetActiveConsensusConfig replaces the active consensus configuration
// wholesale. The replacement happens in a single transaction so a concurrent
// read never observes a partial write.
func (d *Database) SetActiveConsensusConfig(cfg *models.ConsensusConfig) error {
	return d.metadata.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ConsensusConfig{}).Error; err != nil {
			return err
		}
		return tx.Create(cfg).Error
	})
}

// SaveSession inserts or updates a session row
func (d *Database) SaveSession(sess *models.ApprovalSession) error {
	return d.metadata.DB().
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(sess).Error
}

// SaveSessionVote inserts or updates a signer's vote on a session. A re-vote
// by the same signer updates the existing row in place.
func (d *Database) SaveSessionVote(vote *models.SessionVote) error {
	return d.metadata.DB().
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "session_id"},
				{Name: "user_id"},
			},
			DoUpdates: clause.AssignmentColumns(
				[]string{"decision", "updated_at"},
			),
		}).
		Create(vote).Error
}

// GetSession returns a session row and its votes, or nil if no such session
// exists
func (d *Database) GetSession(
	sessionId string,
) (*models.ApprovalSession, []models.SessionVote, error) {
	var sess models.ApprovalSession
	result := d.metadata.DB().First(&sess, "id = ?", sessionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, result.Error
	}
	votes, err := d.GetSessionVotes(sessionId)
	if err != nil {
		return nil, nil, err
	}
	return &sess, votes, nil
}

// GetSessionVotes returns the votes cast on a session
func (d *Database) GetSessionVotes(
	sessionId string,
) ([]models.SessionVote, error) {
	var votes []models.SessionVote
	result := d.metadata.DB().
		Where("session_id = ?", sessionId).
		Order("id").
		Find(&votes)
	if result.Error != nil {
		return nil, result.Error
	}
	return votes, nil
}

// GetOpenSessions returns all sessions still awaiting resolution. Used to
// rebuild in-memory session state after a restart.
func (d *Database) GetOpenSessions() ([]models.ApprovalSession, error) {
	var sessions []models.ApprovalSession
	result := d.metadata.DB().
		Where("state = ?", "PENDING").
		Order("created_at").
		Find(&sessions)
	if result.Error != nil {
		return nil, result.Error
	}
	return sessions, nil
}

// AddAuditLog appends an audit trail entry
func (d *Database) AddAuditLog(entry *models.AuditLog) error {
	return d.metadata.DB().Create(entry).Error
}

// GetRecentAuditLogs returns up to limit audit entries, newest first
func (d *Database) GetRecentAuditLogs(limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	result := d.metadata.DB().
		Order("id DESC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

// SetSessionPayload stores the opaque action payload for a session
func (d *Database) SetSessionPayload(sessionId string, payload []byte) error {
	return d.blob.Set(sessionPayloadKey(sessionId), payload)
}

// GetSessionPayload retrieves the opaque action payload for a session. A
// session without a payload returns nil.
func (d *Database) GetSessionPayload(sessionId string) ([]byte, error) {
	return d.blob.Get(sessionPayloadKey(sessionId))
}

func sessionPayloadKey(sessionId string) []byte {
	return []byte("payload:" + sessionId)
}
