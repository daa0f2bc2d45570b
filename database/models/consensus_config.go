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

// ConsensusConfig is the persisted form of the active consensus policy.
// There is exactly one live row; saving a new policy replaces it wholesale.
type ConsensusConfig struct {
	ID                uint     `gorm:"primarykey"`
	Type              string   `gorm:"size:16"`
	RequiredApprovals int      `gorm:"not null"`
	SignerIds         []string `gorm:"serializer:json"`
	UpdatedAt         time.Time
}

func (ConsensusConfig) TableName() string {
	return "consensus_config"
}
