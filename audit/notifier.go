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

package audit

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/conclave-labs/conclave/event"
	"github.com/conclave-labs/conclave/policy"
	"github.com/conclave-labs/conclave/session"
)

const systemActor = "system"

type NotifierConfig struct {
	Logger   *slog.Logger
	EventBus *event.Bus
	Sinks    []Sink
}

// Notifier subscribes to configuration and session lifecycle events and
// writes an audit entry to every sink. Sink failures are logged and do not
// block the workflow that produced the event.
type Notifier struct {
	logger   *slog.Logger
	eventBus *event.Bus
	sinks    []Sink
	subIds   map[event.EventType]event.SubscriberId
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	n := &Notifier{
		eventBus: cfg.EventBus,
		sinks:    cfg.Sinks,
		subIds:   make(map[event.EventType]event.SubscriberId),
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		n.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		n.logger = cfg.Logger
	}
	return n
}

// Start subscribes to the audited event types
func (n *Notifier) Start() {
	n.subIds[policy.ConfigurationUpdatedEventType] = n.eventBus.SubscribeFunc(
		policy.ConfigurationUpdatedEventType,
		n.handleConfigurationUpdated,
	)
	n.subIds[session.SessionCreatedEventType] = n.eventBus.SubscribeFunc(
		session.SessionCreatedEventType,
		n.handleSessionCreated,
	)
	n.subIds[session.VoteCastEventType] = n.eventBus.SubscribeFunc(
		session.VoteCastEventType,
		n.handleVoteCast,
	)
	n.subIds[session.SessionResolvedEventType] = n.eventBus.SubscribeFunc(
		session.SessionResolvedEventType,
		n.handleSessionResolved,
	)
}

// Stop unsubscribes from the event bus
func (n *Notifier) Stop() {
	for eventType, subId := range n.subIds {
		n.eventBus.Unsubscribe(eventType, subId)
	}
	n.subIds = make(map[event.EventType]event.SubscriberId)
}

func (n *Notifier) record(entry Entry) {
	for _, sink := range n.sinks {
		if err := sink.LogEntry(entry); err != nil {
			n.logger.Warn(
				"audit sink failed",
				"action", entry.Action,
				"error", err,
				"component", "audit",
			)
		}
	}
}

func (n *Notifier) handleConfigurationUpdated(evt event.Event) {
	data, ok := evt.Data.(policy.ConfigurationUpdatedEvent)
	if !ok {
		return
	}
	n.record(Entry{
		Action: "consensus.configure",
		Actor:  data.Actor,
		Details: fmt.Sprintf(
			"consensus configuration set to %s: %d of %d signers must approve",
			data.Type,
			data.RequiredApprovals,
			len(data.SignerIds),
		),
	})
}

func (n *Notifier) handleSessionCreated(evt event.Event) {
	data, ok := evt.Data.(session.SessionCreatedEvent)
	if !ok {
		return
	}
	n.record(Entry{
		Action: "session.create",
		Actor:  systemActor,
		Details: fmt.Sprintf(
			"approval session %s opened for %s: %d of %d approvals required",
			data.SessionId,
			data.ActionType,
			data.RequiredApprovals,
			data.TotalSigners,
		),
		Outcome: string(session.StatePending),
	})
}

func (n *Notifier) handleVoteCast(evt event.Event) {
	data, ok := evt.Data.(session.VoteCastEvent)
	if !ok {
		return
	}
	n.record(Entry{
		Action: "session.vote",
		Actor:  data.UserId,
		Details: fmt.Sprintf(
			"vote %s recorded on session %s",
			data.Decision,
			data.SessionId,
		),
	})
}

func (n *Notifier) handleSessionResolved(evt event.Event) {
	data, ok := evt.Data.(session.SessionResolvedEvent)
	if !ok {
		return
	}
	n.record(Entry{
		Action: "session.resolve",
		Actor:  systemActor,
		Details: fmt.Sprintf(
			"approval session %s for %s resolved %s with %d approvals and %d rejections after %s",
			data.SessionId,
			data.ActionType,
			data.Outcome,
			data.ApproveCount,
			data.RejectCount,
			data.Elapsed.Round(time.Second),
		),
		Outcome: string(data.Outcome),
	})
}
