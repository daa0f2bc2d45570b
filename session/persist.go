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
	"sort"

	"github.com/conclave-labs/conclave/consensus"
	"github.com/conclave-labs/conclave/database/models"
	"github.com/conclave-labs/conclave/directory"
)

func sessionToModel(s *Session) *models.ApprovalSession {
	snapshot := make([]models.SessionSigner, 0, len(s.SignerSnapshot))
	for _, signer := range s.SignerSnapshot {
		snapshot = append(snapshot, models.SessionSigner{
			UserId:      signer.UserId,
			Name:        signer.Name,
			RoleId:      signer.RoleId,
			RoleDisplay: signer.RoleDisplay,
		})
	}
	return &models.ApprovalSession{
		ID:                s.Id,
		ActionType:        s.ActionType,
		State:             string(s.State),
		RequiredApprovals: s.RequiredApprovals,
		SignerSnapshot:    snapshot,
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
	}
}

func sessionFromModel(
	row *models.ApprovalSession,
	votes []models.SessionVote,
) (*managedSession, error) {
	snapshot := make([]directory.Signer, 0, len(row.SignerSnapshot))
	for _, signer := range row.SignerSnapshot {
		snapshot = append(snapshot, directory.Signer{
			UserId:      signer.UserId,
			Name:        signer.Name,
			RoleId:      signer.RoleId,
			RoleDisplay: signer.RoleDisplay,
		})
	}
	voteMap := make(map[string]consensus.Decision, len(votes))
	for _, vote := range votes {
		decision, err := consensus.ParseDecision(vote.Decision)
		if err != nil {
			return nil, fmt.Errorf(
				"invalid stored vote for session %s: %w",
				row.ID,
				err,
			)
		}
		voteMap[vote.UserId] = decision
	}
	return &managedSession{
		Session: Session{
			Id:                row.ID,
			ActionType:        row.ActionType,
			State:             State(row.State),
			RequiredApprovals: row.RequiredApprovals,
			SignerSnapshot:    snapshot,
			Votes:             voteMap,
			CreatedAt:         row.CreatedAt,
			ExpiresAt:         row.ExpiresAt,
		},
	}, nil
}

func sortSessionsByCreation(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Id < sessions[j].Id
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
