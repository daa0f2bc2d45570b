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

// Package policy defines the consensus policy model and the store for the
// single active configuration. A policy names a fixed M-of-N threshold type
// and exactly N selected signers; sessions snapshot it at creation time and
// are never affected by later changes.
package policy

import (
	"errors"
	"fmt"
	"slices"
)

// Type identifies one of the supported M-of-N consensus thresholds
type Type string

const (
	Type2of3 Type = "2of3"
	Type3of4 Type = "3of4"
	Type3of5 Type = "3of5"
	Type4of5 Type = "4of5"
)

// Requirement is the (required, total) pair behind a consensus type
type Requirement struct {
	Required int
	Total    int
}

var typeRequirements = map[Type]Requirement{
	Type2of3: {Required: 2, Total: 3},
	Type3of4: {Required: 3, Total: 4},
	Type3of5: {Required: 3, Total: 5},
	Type4of5: {Required: 4, Total: 5},
}

// Types returns the supported consensus types in display order
func Types() []Type {
	return []Type{Type2of3, Type3of4, Type3of5, Type4of5}
}

// Requirement returns the threshold behind the type, and whether the type is
// known
func (t Type) Requirement() (Requirement, bool) {
	req, ok := typeRequirements[t]
	return req, ok
}

// ErrInvalidConfig indicates a configuration that violates the policy
// invariants. The wrapped message names the specific violation.
var ErrInvalidConfig = errors.New("invalid consensus configuration")

// Config is a consensus policy: the threshold type, its required approval
// count, and the ordered set of selected signer user IDs
type Config struct {
	Type              Type     `json:"type"`
	RequiredApprovals int      `json:"requiredApprovals"`
	SignerIds         []string `json:"signerIds"`
}

// DefaultConfig returns the documented default shown before an administrator
// has configured anything: 2-of-3 with no signers selected. It does not pass
// Validate and cannot be used to create sessions.
func DefaultConfig() *Config {
	return &Config{
		Type:              Type2of3,
		RequiredApprovals: 2,
		SignerIds:         []string{},
	}
}

// Validate checks the policy invariants: a known type, a required count
// matching the type, exactly as many signers as the type's total, and no
// duplicate signers
func (c *Config) Validate() error {
	req, ok := c.Type.Requirement()
	if !ok {
		return fmt.Errorf(
			"%w: unknown consensus type %q",
			ErrInvalidConfig,
			c.Type,
		)
	}
	if c.RequiredApprovals != req.Required {
		return fmt.Errorf(
			"%w: required approvals %d does not match type %s (want %d)",
			ErrInvalidConfig,
			c.RequiredApprovals,
			c.Type,
			req.Required,
		)
	}
	if len(c.SignerIds) != req.Total {
		return fmt.Errorf(
			"%w: %d signers selected, type %s requires exactly %d",
			ErrInvalidConfig,
			len(c.SignerIds),
			c.Type,
			req.Total,
		)
	}
	seen := make(map[string]bool, len(c.SignerIds))
	for _, signerId := range c.SignerIds {
		if signerId == "" {
			return fmt.Errorf("%w: empty signer ID", ErrInvalidConfig)
		}
		if seen[signerId] {
			return fmt.Errorf(
				"%w: duplicate signer ID %q",
				ErrInvalidConfig,
				signerId,
			)
		}
		seen[signerId] = true
	}
	return nil
}

// Copy returns a deep copy of the config
func (c *Config) Copy() *Config {
	return &Config{
		Type:              c.Type,
		RequiredApprovals: c.RequiredApprovals,
		SignerIds:         slices.Clone(c.SignerIds),
	}
}
