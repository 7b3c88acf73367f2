/*
 * Copyright 2024 Nexus Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceRegistration is one pipeline stage:
// (type, resourceLocator?, configuration, infoUrl?).
type SourceRegistration struct {
	Type            string         `yaml:"type"`
	ResourceLocator string         `yaml:"resourceLocator,omitempty"`
	Configuration   map[string]any `yaml:"configuration,omitempty"`
	InfoURL         string         `yaml:"infoUrl,omitempty"`
}

// PipelineRegistration is one user pipeline: an ordered, non-empty list
// of source registrations plus optional release/visibility patterns.
type PipelineRegistration struct {
	ReleasePattern    string               `yaml:"releasePattern,omitempty"`
	VisibilityPattern string               `yaml:"visibilityPattern,omitempty"`
	Sources           []SourceRegistration `yaml:"sources"`
}

// UserRegistration is one user's pipelines and claim set as authored in
// the registration document.
type UserRegistration struct {
	Username  string                 `yaml:"username"`
	IsAdmin   bool                   `yaml:"isAdmin,omitempty"`
	Claims    map[string][]string    `yaml:"claims,omitempty"`
	Pipelines []PipelineRegistration `yaml:"pipelines"`
}

type pipelinesDocument struct {
	Users []UserRegistration `yaml:"users"`
}

// LoadPipelines reads a YAML pipeline registration document and
// validates the structural invariants: usernames non-empty and unique,
// every pipeline a non-empty ordered source list.
func LoadPipelines(path string) ([]UserRegistration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read pipelines %s: %w", path, err)
	}
	var doc pipelinesDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: decode pipelines %s: %w", path, err)
	}

	seen := make(map[string]bool)
	for _, u := range doc.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("config: pipelines %s: user with empty username", path)
		}
		if seen[u.Username] {
			return nil, fmt.Errorf("config: pipelines %s: duplicate user %q", path, u.Username)
		}
		seen[u.Username] = true
		for i, p := range u.Pipelines {
			if len(p.Sources) == 0 {
				return nil, fmt.Errorf("config: pipelines %s: user %q pipeline %d has no sources", path, u.Username, i)
			}
			for j, s := range p.Sources {
				if s.Type == "" {
					return nil, fmt.Errorf("config: pipelines %s: user %q pipeline %d source %d has no type", path, u.Username, i, j)
				}
			}
		}
	}
	return doc.Users, nil
}
