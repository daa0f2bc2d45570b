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
	"github.com/conclave-labs/conclave/consensus"
)

// SignerProgress is one signer's row in the progress view
type SignerProgress struct {
	UserId      string `json:"userId"`
	Name        string `json:"name"`
	RoleDisplay string `json:"roleDisplay"`
	Decision    string `json:"decision"`
}

// Progress is the display contract for a session: counts, remaining time,
// and per-signer decisions, in snapshot order
type Progress struct {
	SessionId         string           `json:"sessionId"`
	ActionType        string           `json:"actionType"`
	State             State            `json:"state"`
	ApprovedCount     int              `json:"approvedCount"`
	RejectedCount     int              `json:"rejectedCount"`
	RequiredApprovals int              `json:"requiredApprovals"`
	TotalSigners      int              `json:"totalSigners"`
	RemainingSeconds  int64            `json:"remainingSeconds"`
	PerSigner         []SignerProgress `json:"perSigner"`
}

// Progress computes the current progress view for a session
func (m *Manager) Progress(sessionId string) (*Progress, error) {
	ms := m.managed(sessionId)
	if ms == nil {
		return nil, ErrSessionNotFound
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	tally := consensus.Count(ms.Votes)
	remaining := int64(0)
	if ms.State == StatePending {
		if until := ms.ExpiresAt.Sub(m.now()); until > 0 {
			remaining = int64(until.Seconds())
		}
	}
	perSigner := make([]SignerProgress, 0, len(ms.SignerSnapshot))
	for _, signer := range ms.SignerSnapshot {
		decision := "pending"
		if d, ok := ms.Votes[signer.UserId]; ok {
			switch d {
			case consensus.DecisionApprove:
				decision = "approved"
			case consensus.DecisionReject:
				decision = "rejected"
			}
		}
		perSigner = append(perSigner, SignerProgress{
			UserId:      signer.UserId,
			Name:        signer.Name,
			RoleDisplay: signer.RoleDisplay,
			Decision:    decision,
		})
	}
	return &Progress{
		SessionId:         ms.Id,
		ActionType:        ms.ActionType,
		State:             ms.State,
		ApprovedCount:     tally.Approve,
		RejectedCount:     tally.Reject,
		RequiredApprovals: ms.RequiredApprovals,
		TotalSigners:      len(ms.SignerSnapshot),
		RemainingSeconds:  remaining,
		PerSigner:         perSigner,
	}, nil
}
