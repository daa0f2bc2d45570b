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

// Package audit fans out consensus configuration changes and session
// lifecycle transitions to pluggable sinks for the audit trail
package audit

import (
	"log/slog"
	"time"

	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/database/models"
)

// Entry is one audit trail record. Actor and the details text carry opaque
// user IDs only, never directory names or emails.
type Entry struct {
	Action  string
	Actor   string
	Details string
	Outcome string
}

// Sink receives audit entries. Implementations must tolerate being called
// from multiple goroutines.
type Sink interface {
	LogEntry(entry Entry) error
}

// SlogSink writes audit entries to a structured logger
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) LogEntry(entry Entry) error {
	s.logger.Info(
		entry.Details,
		"action", entry.Action,
		"actor", entry.Actor,
		"outcome", entry.Outcome,
		"component", "audit",
	)
	return nil
}

// DatabaseSink appends audit entries to the metadata store's audit table
type DatabaseSink struct {
	db *database.Database
}

func NewDatabaseSink(db *database.Database) *DatabaseSink {
	return &DatabaseSink{db: db}
}

func (s *DatabaseSink) LogEntry(entry Entry) error {
	return s.db.AddAuditLog(&models.AuditLog{
		Action:    entry.Action,
		Actor:     entry.Actor,
		Details:   entry.Details,
		Outcome:   entry.Outcome,
		CreatedAt: time.Now(),
	})
}
