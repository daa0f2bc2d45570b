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

package directory

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// StaticProvider serves a fixed set of roles and users. It is used for
// embedded deployments and tests, and for directory files loaded from disk.
type StaticProvider struct {
	Roles []Role `yaml:"roles"`
	Users []User `yaml:"users"`
}

func (p *StaticProvider) GetRoles() ([]Role, error) {
	return slices.Clone(p.Roles), nil
}

func (p *StaticProvider) GetUsers() ([]User, error) {
	return slices.Clone(p.Users), nil
}

// NewStaticProviderFromFile loads a YAML directory file containing role and
// user records
func NewStaticProviderFromFile(path string) (*StaticProvider, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading directory file: %w", err)
	}
	var provider StaticProvider
	if err := yaml.Unmarshal(buf, &provider); err != nil {
		return nil, fmt.Errorf("error parsing directory file: %w", err)
	}
	return &provider, nil
}
