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

package database_test

import (
	"testing"
	"time"

	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/database/models"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	return db
}

func TestConsensusConfigRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	cfg, err := db.GetActiveConsensusConfig()
	require.NoError(t, err)
	require.Nil(t, cfg, "expected no config before first save")

	err = db.SetActiveConsensusConfig(&models.ConsensusConfig{
		Type:              "2of3",
		RequiredApprovals: 2,
		SignerIds:         []string{"u1", "u2", "u3"},
	})
	require.NoError(t, err)

	cfg, err = db.GetActiveConsensusConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "2of3", cfg.Type)
	require.Equal(t, 2, cfg.RequiredApprovals)
	require.Equal(t, []string{"u1", "u2", "u3"}, cfg.SignerIds)
}

func TestConsensusConfigOverwrite(t *testing.T) {
	db := newTestDatabase(t)
	err := db.SetActiveConsensusConfig(&models.ConsensusConfig{
		Type:              "2of3",
		RequiredApprovals: 2,
		SignerIds:         []string{"u1", "u2", "u3"},
	})
	require.NoError(t, err)
	err = db.SetActiveConsensusConfig(&models.ConsensusConfig{
		Type:              "3of5",
		RequiredApprovals: 3,
		SignerIds:         []string{"u1", "u2", "u3", "u4", "u5"},
	})
	require.NoError(t, err)

	cfg, err := db.GetActiveConsensusConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "3of5", cfg.Type)
	// Old config must be gone entirely, not merged
	var count int64
	require.NoError(
		t,
		db.Metadata().DB().Model(&models.ConsensusConfig{}).Count(&count).Error,
	)
	require.Equal(t, int64(1), count)
}

func TestSessionRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now().UTC().Truncate(time.Second)
	sess := &models.ApprovalSession{
		ID:                "11111111-2222-3333-4444-555555555555",
		ActionType:        "treasury.transfer",
		State:             "PENDING",
		RequiredApprovals: 2,
		SignerSnapshot: []models.SessionSigner{
			{UserId: "u1", Name: "Alice", RoleId: "owner", RoleDisplay: "Owner"},
			{UserId: "u2", Name: "Bob", RoleId: "", RoleDisplay: "No Role"},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(300 * time.Second),
	}
	require.NoError(t, db.SaveSession(sess))

	loaded, votes, err := db.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Empty(t, votes)
	require.Equal(t, sess.ActionType, loaded.ActionType)
	require.Equal(t, sess.SignerSnapshot, loaded.SignerSnapshot)

	// Update state in place
	loaded.State = "APPROVED"
	require.NoError(t, db.SaveSession(loaded))
	reloaded, _, err := db.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "APPROVED", reloaded.State)
}

func TestSessionVoteUpsert(t *testing.T) {
	db := newTestDatabase(t)
	vote := &models.SessionVote{
		SessionID: "sess-1",
		UserId:    "u1",
		Decision:  "approve",
	}
	require.NoError(t, db.SaveSessionVote(vote))
	require.NoError(t, db.SaveSessionVote(&models.SessionVote{
		SessionID: "sess-1",
		UserId:    "u1",
		Decision:  "reject",
	}))
	votes, err := db.GetSessionVotes("sess-1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, "reject", votes[0].Decision)
}

func TestGetOpenSessions(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now().UTC()
	for _, testDef := range []struct {
		id    string
		state string
	}{
		{"s1", "PENDING"},
		{"s2", "APPROVED"},
		{"s3", "PENDING"},
		{"s4", "EXPIRED"},
	} {
		require.NoError(t, db.SaveSession(&models.ApprovalSession{
			ID:                testDef.id,
			ActionType:        "test",
			State:             testDef.state,
			RequiredApprovals: 1,
			CreatedAt:         now,
			ExpiresAt:         now.Add(time.Minute),
		}))
	}
	open, err := db.GetOpenSessions()
	require.NoError(t, err)
	require.Len(t, open, 2)
}

func TestSessionPayloadBlob(t *testing.T) {
	db := newTestDatabase(t)
	payload := []byte(`{"amount":"100","to":"0xabc"}`)
	require.NoError(t, db.SetSessionPayload("sess-1", payload))
	got, err := db.GetSessionPayload("sess-1")
	require.NoError(t, err)
	require.Equal(t, payload, got)
	// Missing payload is nil, not an error
	got, err = db.GetSessionPayload("sess-2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAuditLog(t *testing.T) {
	db := newTestDatabase(t)
	for _, details := range []string{"first", "second", "third"} {
		require.NoError(t, db.AddAuditLog(&models.AuditLog{
			Action:  "Consensus Configuration Updated",
			Actor:   "admin",
			Details: details,
			Outcome: "Success",
		}))
	}
	entries, err := db.GetRecentAuditLogs(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "third", entries[0].Details)
}
