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

package session

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/conclave-labs/conclave/consensus"
	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/database/models"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/event"
	"github.com/conclave-labs/conclave/policy"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// managedSession pairs a session with the mutex that serializes all state
// changes on it. Votes and the expiry check run under this mutex so two
// concurrent votes (or a vote racing the expiry sweep) can never both
// transition the session.
type managedSession struct {
	mutex sync.Mutex
	Session
}

type ManagerConfig struct {
	Logger         *slog.Logger
	EventBus       *event.Bus
	PromRegistry   prometheus.Registerer
	Database       *database.Database
	Directory      *directory.Directory
	PolicyStore    *policy.Store
	ApprovalWindow time.Duration
	// NowFunc overrides the clock, used by tests
	NowFunc func() time.Time
}

// Manager owns all approval sessions. Operations on the same session are
// serialized per session; different sessions proceed fully in parallel.
type Manager struct {
	logger      *slog.Logger
	eventBus    *event.Bus
	db          *database.Database
	directory   *directory.Directory
	policyStore *policy.Store
	window      time.Duration
	now         func() time.Time

	sessions      map[string]*managedSession
	sessionsMutex sync.RWMutex

	metrics struct {
		sessionsCreated  prometheus.Counter
		sessionsResolved *prometheus.CounterVec
		openSessions     prometheus.Gauge
		votesCast        prometheus.Counter
	}
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		eventBus:    cfg.EventBus,
		db:          cfg.Database,
		directory:   cfg.Directory,
		policyStore: cfg.PolicyStore,
		window:      cfg.ApprovalWindow,
		now:         cfg.NowFunc,
		sessions:    make(map[string]*managedSession),
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = cfg.Logger
	}
	if m.window <= 0 {
		m.window = DefaultApprovalWindow
	}
	if m.now == nil {
		m.now = time.Now
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	m.metrics.sessionsCreated = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "conclave_sessions_created_total",
			Help: "total approval sessions created",
		},
	)
	m.metrics.sessionsResolved = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_sessions_resolved_total",
			Help: "total approval sessions resolved by outcome",
		},
		[]string{"outcome"},
	)
	m.metrics.openSessions = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "conclave_sessions_open",
			Help: "approval sessions currently awaiting votes",
		},
	)
	m.metrics.votesCast = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "conclave_votes_cast_total",
			Help: "total votes accepted across all sessions",
		},
	)
	return m
}

// Recover reloads open sessions from the database after a restart
func (m *Manager) Recover() error {
	rows, err := m.db.GetOpenSessions()
	if err != nil {
		return fmt.Errorf("failed to load open sessions: %w", err)
	}
	m.sessionsMutex.Lock()
	defer m.sessionsMutex.Unlock()
	for _, row := range rows {
		votes, err := m.db.GetSessionVotes(row.ID)
		if err != nil {
			return fmt.Errorf(
				"failed to load votes for session %s: %w",
				row.ID,
				err,
			)
		}
		ms, err := sessionFromModel(&row, votes)
		if err != nil {
			return err
		}
		m.sessions[ms.Id] = ms
		m.metrics.openSessions.Inc()
	}
	if len(rows) > 0 {
		m.logger.Info(
			"recovered open approval sessions",
			"count", len(rows),
			"component", "session",
		)
	}
	return nil
}

// Create opens a new approval session for the given action against the
// active consensus configuration. The eligible signer set and required
// approval count are resolved once and frozen into the session.
func (m *Manager) Create(actionType string, payload []byte) (*Session, error) {
	cfg, err := m.policyStore.Load()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	if len(cfg.SignerIds) == 0 {
		return nil, ErrEmptySignerSet
	}
	signers, err := m.directory.ResolveSigners(cfg.SignerIds)
	if err != nil {
		return nil, err
	}
	now := m.now()
	ms := &managedSession{
		Session: Session{
			Id:                uuid.NewString(),
			ActionType:        actionType,
			State:             StatePending,
			RequiredApprovals: cfg.RequiredApprovals,
			SignerSnapshot:    signers,
			Votes:             make(map[string]consensus.Decision),
			CreatedAt:         now,
			ExpiresAt:         now.Add(m.window),
		},
	}
	if len(payload) > 0 {
		if err := m.db.SetSessionPayload(ms.Id, payload); err != nil {
			return nil, fmt.Errorf("failed to store session payload: %w", err)
		}
	}
	if err := m.db.SaveSession(sessionToModel(&ms.Session)); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	m.sessionsMutex.Lock()
	m.sessions[ms.Id] = ms
	m.sessionsMutex.Unlock()
	m.metrics.sessionsCreated.Inc()
	m.metrics.openSessions.Inc()
	m.logger.Info(
		"approval session created",
		"session", ms.Id,
		"action", actionType,
		"required", ms.RequiredApprovals,
		"signers", len(signers),
		"component", "session",
	)
	if m.eventBus != nil {
		m.eventBus.Publish(
			SessionCreatedEventType,
			event.NewEvent(
				SessionCreatedEventType,
				SessionCreatedEvent{
					SessionId:         ms.Id,
					ActionType:        actionType,
					RequiredApprovals: ms.RequiredApprovals,
					TotalSigners:      len(signers),
					ExpiresAt:         ms.ExpiresAt,
				},
			),
		)
	}
	return ms.Session.copy(), nil
}

// CastVote records a signer's decision on a session. A signer voting again
// overwrites their prior decision rather than double counting. The expiry
// check runs under the same per-session lock as the vote, so a vote
// submitted after the window deterministically fails instead of racing the
// background sweep.
func (m *Manager) CastVote(
	sessionId string,
	userId string,
	decision consensus.Decision,
) (*VoteResult, error) {
	ms := m.managed(sessionId)
	if ms == nil {
		return nil, ErrSessionNotFound
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	if ms.State != StatePending {
		return nil, ErrSessionNotPending
	}
	now := m.now()
	if now.After(ms.ExpiresAt) {
		// Expire inline rather than waiting for the sweep
		m.resolveLocked(ms, StateExpired, now)
		return nil, ErrSessionExpired
	}
	if !ms.Eligible(userId) {
		return nil, ErrSignerNotEligible
	}
	err := m.db.SaveSessionVote(&models.SessionVote{
		SessionID: ms.Id,
		UserId:    userId,
		Decision:  decision.String(),
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist vote: %w", err)
	}
	ms.Votes[userId] = decision
	m.metrics.votesCast.Inc()
	m.logger.Info(
		"vote cast",
		"session", ms.Id,
		"voter", userId,
		"decision", decision.String(),
		"component", "session",
	)
	if m.eventBus != nil {
		m.eventBus.PublishAsync(
			VoteCastEventType,
			event.NewEvent(
				VoteCastEventType,
				VoteCastEvent{
					SessionId: ms.Id,
					UserId:    userId,
					Decision:  decision,
				},
			),
		)
	}
	outcome := consensus.Evaluate(
		len(ms.SignerSnapshot),
		ms.RequiredApprovals,
		ms.Votes,
	)
	if outcome.Terminal() {
		m.resolveLocked(ms, stateFromOutcome(outcome), now)
	}
	tally := consensus.Count(ms.Votes)
	return &VoteResult{
		State:             ms.State,
		ApproveCount:      tally.Approve,
		RejectCount:       tally.Reject,
		RequiredApprovals: ms.RequiredApprovals,
	}, nil
}

// Tick expires any pending sessions whose window has lapsed. It is safe to
// call repeatedly and from a periodic scheduler; ticking an already-terminal
// session is a no-op.
func (m *Manager) Tick(now time.Time) {
	m.sessionsMutex.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.sessionsMutex.RUnlock()
	for _, ms := range sessions {
		ms.mutex.Lock()
		if ms.State == StatePending && now.After(ms.ExpiresAt) {
			m.resolveLocked(ms, StateExpired, now)
		}
		ms.mutex.Unlock()
	}
}

// Get returns a point-in-time copy of a session
func (m *Manager) Get(sessionId string) (*Session, error) {
	ms := m.managed(sessionId)
	if ms == nil {
		return nil, ErrSessionNotFound
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.Session.copy(), nil
}

// List returns point-in-time copies of all known sessions, oldest first
func (m *Manager) List() []*Session {
	m.sessionsMutex.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.sessionsMutex.RUnlock()
	ret := make([]*Session, 0, len(sessions))
	for _, ms := range sessions {
		ms.mutex.Lock()
		ret = append(ret, ms.Session.copy())
		ms.mutex.Unlock()
	}
	sortSessionsByCreation(ret)
	return ret
}

// Payload returns the opaque action payload stored with a session
func (m *Manager) Payload(sessionId string) ([]byte, error) {
	if ms := m.managed(sessionId); ms == nil {
		return nil, ErrSessionNotFound
	}
	return m.db.GetSessionPayload(sessionId)
}

func (m *Manager) managed(sessionId string) *managedSession {
	m.sessionsMutex.RLock()
	defer m.sessionsMutex.RUnlock()
	return m.sessions[sessionId]
}

// resolveLocked transitions a session into a terminal state. Callers must
// hold the session mutex and must have verified the session is pending, so
// the resolution event fires exactly once per session.
func (m *Manager) resolveLocked(
	ms *managedSession,
	state State,
	now time.Time,
) {
	ms.State = state
	model := sessionToModel(&ms.Session)
	resolvedAt := now
	model.ResolvedAt = &resolvedAt
	if err := m.db.SaveSession(model); err != nil {
		// The in-memory transition stands; durable state will catch up on
		// the next save or be rebuilt by Recover
		m.logger.Error(
			"failed to persist session resolution",
			"session", ms.Id,
			"error", err,
			"component", "session",
		)
	}
	tally := consensus.Count(ms.Votes)
	m.metrics.sessionsResolved.WithLabelValues(string(state)).Inc()
	m.metrics.openSessions.Dec()
	m.logger.Info(
		"approval session resolved",
		"session", ms.Id,
		"action", ms.ActionType,
		"outcome", string(state),
		"approvals", tally.Approve,
		"rejections", tally.Reject,
		"component", "session",
	)
	if m.eventBus != nil {
		m.eventBus.Publish(
			SessionResolvedEventType,
			event.NewEvent(
				SessionResolvedEventType,
				SessionResolvedEvent{
					SessionId:    ms.Id,
					ActionType:   ms.ActionType,
					Outcome:      state,
					ApproveCount: tally.Approve,
					RejectCount:  tally.Reject,
					Elapsed:      now.Sub(ms.CreatedAt),
				},
			),
		)
	}
}

func stateFromOutcome(outcome consensus.Outcome) State {
	switch outcome {
	case consensus.OutcomeApproved:
		return StateApproved
	case consensus.OutcomeRejected:
		return StateRejected
	default:
		return StatePending
	}
}
