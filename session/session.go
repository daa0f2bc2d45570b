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

// Package session implements the approval session lifecycle: creation
// against the active consensus policy, serialized vote collection with a
// bounded window, and resolution into a terminal outcome.
package session

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/conclave-labs/conclave/consensus"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/event"
)

const (
	SessionCreatedEventType  event.EventType = "session.created"
	VoteCastEventType        event.EventType = "session.vote_cast"
	SessionResolvedEventType event.EventType = "session.resolved"
)

// DefaultApprovalWindow is how long a session accepts votes before expiring
const DefaultApprovalWindow = 300 * time.Second

// State is the lifecycle state of an approval session. Pending is the only
// non-terminal state; there are no transitions out of a terminal state.
type State string

const (
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
	StateExpired  State = "EXPIRED"
)

func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateExpired
}

var (
	// ErrNotConfigured indicates no consensus configuration has been saved.
	// The gated action must be refused, not allowed through.
	ErrNotConfigured = errors.New("no consensus configuration")
	// ErrEmptySignerSet indicates the configuration selects no signers. A
	// zero-signer consensus would make approval gating meaningless, so
	// session creation refuses it.
	ErrEmptySignerSet = errors.New("consensus configuration has no signers")
	// ErrSessionNotFound indicates an unknown session ID
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotPending indicates the session has already resolved
	ErrSessionNotPending = errors.New("session no longer accepting votes")
	// ErrSessionExpired indicates the approval window has lapsed
	ErrSessionExpired = errors.New("session expired")
	// ErrSignerNotEligible indicates the voter is not in the session's
	// frozen signer snapshot
	ErrSignerNotEligible = errors.New("not an eligible signer")
)

// Session is one instance of a gated action awaiting consensus. The signer
// snapshot and required approval count are frozen at creation time; later
// configuration changes never affect an in-flight session.
type Session struct {
	Id                string
	ActionType        string
	State             State
	RequiredApprovals int
	SignerSnapshot    []directory.Signer
	Votes             map[string]consensus.Decision
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Eligible returns true if the user is in the session's signer snapshot
func (s *Session) Eligible(userId string) bool {
	for _, signer := range s.SignerSnapshot {
		if signer.UserId == userId {
			return true
		}
	}
	return false
}

func (s *Session) copy() *Session {
	ret := *s
	ret.SignerSnapshot = slices.Clone(s.SignerSnapshot)
	ret.Votes = maps.Clone(s.Votes)
	return &ret
}

// VoteResult reports the session state observed immediately after a vote was
// recorded
type VoteResult struct {
	State             State
	ApproveCount      int
	RejectCount       int
	RequiredApprovals int
}

// SessionCreatedEvent is published when a new session opens
type SessionCreatedEvent struct {
	SessionId         string
	ActionType        string
	RequiredApprovals int
	TotalSigners      int
	ExpiresAt         time.Time
}

// VoteCastEvent is published after each accepted vote
type VoteCastEvent struct {
	SessionId string
	UserId    string
	Decision  consensus.Decision
}

// SessionResolvedEvent is published exactly once when a session reaches a
// terminal state
type SessionResolvedEvent struct {
	SessionId    string
	ActionType   string
	Outcome      State
	ApproveCount int
	RejectCount  int
	Elapsed      time.Duration
}
