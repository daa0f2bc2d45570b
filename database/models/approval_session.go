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

package models

import "time"

// SessionSigner is one entry of a session's frozen eligible-signer snapshot
type SessionSigner struct {
	UserId      string `json:"userId"`
	Name        string `json:"name"`
	RoleId      string `json:"roleId"`
	RoleDisplay string `json:"roleDisplay"`
}

// ApprovalSession is the persisted form of an approval session. The signer
// snapshot is stored inline since it is immutable for the session's lifetime.
// The opaque action payload lives in the blob store keyed by session ID.
type ApprovalSession struct {
	ID                string          `gorm:"primarykey;size:36"`
	ActionType        string          `gorm:"index"`
	State             string          `gorm:"index;size:16"`
	RequiredApprovals int             `gorm:"not null"`
	SignerSnapshot    []SessionSigner `gorm:"serializer:json"`
	CreatedAt         time.Time
	ExpiresAt         time.Time `gorm:"index"`
	ResolvedAt        *time.Time
}

func (ApprovalSession) TableName() string {
	return "approval_session"
}

// SessionVote records one signer's current decision on a session. A re-vote
// updates the existing row, keyed by (session, user).
type SessionVote struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"uniqueIndex:idx_session_vote;size:36"`
	UserId    string `gorm:"uniqueIndex:idx_session_vote"`
	Decision  string `gorm:"size:8"`
	UpdatedAt time.Time
}

func (SessionVote) TableName() string {
	return "session_vote"
}
