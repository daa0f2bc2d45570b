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

// AuditLog is one audit trail entry. Details carry opaque user IDs rather
// than names or emails to keep PII out of the audit payload.
type AuditLog struct {
	ID        uint   `gorm:"primarykey"`
	Action    string `gorm:"index"`
	Actor     string `gorm:"index"`
	Details   string
	Outcome   string    `gorm:"size:8"`
	CreatedAt time.Time `gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
