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

// Package directory resolves the set of users eligible to sign approval
// sessions. The backing user/role records live outside this process and are
// reached through the Provider interface; the directory itself only
// normalizes and resolves them.
package directory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NoRoleDisplay is the label used for signers whose role cannot be resolved.
// A missing role does not affect eligibility.
const NoRoleDisplay = "No Role"

// ErrUnavailable indicates the backing user/role store could not be reached.
// The condition is transient and the caller may retry.
var ErrUnavailable = errors.New("signer directory unavailable")

// UnknownUserError is returned when one or more user IDs cannot be resolved.
// Resolution is all-or-nothing, so the error carries every offending ID.
type UnknownUserError struct {
	UserIds []string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf(
		"unknown user ID(s): %s",
		strings.Join(e.UserIds, ", "),
	)
}

// Role is a named category of signer eligibility
type Role struct {
	Id          string `json:"id"          yaml:"id"`
	Description string `json:"description" yaml:"description"`
}

// DisplayName returns the human-readable form of the role ID
func (r Role) DisplayName() string {
	return FormatRoleDisplay(r.Id)
}

// User is a natural-person account. RoleId may be empty, meaning the user
// holds no role.
type User struct {
	Id     string `json:"id"     yaml:"id"`
	Name   string `json:"name"   yaml:"name"`
	Email  string `json:"email"  yaml:"email"`
	RoleId string `json:"roleId" yaml:"roleId"`
}

// Signer is a resolved eligibility record combining a user with its resolved
// role. Signers are computed on demand and frozen into session snapshots;
// they are never stored independently.
type Signer struct {
	UserId      string `json:"userId"`
	Name        string `json:"name"`
	RoleId      string `json:"roleId"`
	RoleDisplay string `json:"roleDisplay"`
}

// Provider is the read-only boundary to the external user/role store
type Provider interface {
	GetRoles() ([]Role, error)
	GetUsers() ([]User, error)
}

type DirectoryConfig struct {
	Logger   *slog.Logger
	Provider Provider
}

// Directory resolves eligible signers from roles and users
type Directory struct {
	logger   *slog.Logger
	provider Provider
}

func NewDirectory(cfg DirectoryConfig) *Directory {
	d := &Directory{
		provider: cfg.Provider,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		d.logger = cfg.Logger
	}
	return d
}

// ListRoles returns the known roles, deduplicated by role ID
func (d *Directory) ListRoles() ([]Role, error) {
	roles, err := d.provider.GetRoles()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	seen := make(map[string]bool, len(roles))
	ret := make([]Role, 0, len(roles))
	for _, role := range roles {
		if seen[role.Id] {
			d.logger.Warn(
				"duplicate role returned by provider",
				"role", role.Id,
				"component", "directory",
			)
			continue
		}
		seen[role.Id] = true
		ret = append(ret, role)
	}
	return ret, nil
}

// ListUsersByRole returns the users holding the given role. An unknown or
// unheld role yields an empty result, not an error.
func (d *Directory) ListUsersByRole(roleId string) ([]User, error) {
	users, err := d.provider.GetUsers()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ret := []User{}
	for _, user := range users {
		if user.RoleId == roleId {
			ret = append(ret, user)
		}
	}
	return ret, nil
}

// ResolveSigners resolves each user ID into a Signer with a human-readable
// role label. Output order matches input order. If any ID does not resolve,
// the whole call fails with UnknownUserError listing the offending IDs.
func (d *Directory) ResolveSigners(userIds []string) ([]Signer, error) {
	users, err := d.provider.GetUsers()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	roles, err := d.provider.GetRoles()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	usersById := make(map[string]User, len(users))
	for _, user := range users {
		usersById[user.Id] = user
	}
	rolesById := make(map[string]Role, len(roles))
	for _, role := range roles {
		rolesById[role.Id] = role
	}
	var unknown []string
	ret := make([]Signer, 0, len(userIds))
	for _, userId := range userIds {
		user, ok := usersById[userId]
		if !ok {
			unknown = append(unknown, userId)
			continue
		}
		signer := Signer{
			UserId:      user.Id,
			Name:        user.Name,
			RoleId:      user.RoleId,
			RoleDisplay: NoRoleDisplay,
		}
		if user.RoleId != "" {
			if role, ok := rolesById[user.RoleId]; ok {
				signer.RoleDisplay = role.DisplayName()
			} else {
				d.logger.Debug(
					"user references unknown role",
					"user", user.Id,
					"role", user.RoleId,
					"component", "directory",
				)
			}
		}
		ret = append(ret, signer)
	}
	if len(unknown) > 0 {
		return nil, &UnknownUserError{UserIds: unknown}
	}
	return ret, nil
}
