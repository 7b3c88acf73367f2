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

package filedb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
)

// Metadata is the per-catalog persisted record behind the metadata and
// license endpoints: contact, group memberships, optional overrides.
type Metadata struct {
	Contact     string            `json:"contact"`
	Groups      []string          `json:"groups"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	LicenseText string            `json:"licenseText,omitempty"`
}

// LoadMetadata reads a catalog's persisted metadata record, returning a
// zero-value Metadata (not an error) if none has ever been written.
func (l Layout) LoadMetadata(catalogID string) (Metadata, error) {
	path := l.MetadataPath(catalogID)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("filedb: read metadata for %s: %w", catalogID, err)
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return Metadata{}, nexuserr.Fatal("filedb: corrupt metadata record for %s: %v", catalogID, err)
	}
	return m, nil
}

// StoreMetadata persists a catalog's metadata record, creating the
// catalog's directory if necessary.
func (l Layout) StoreMetadata(catalogID string, m Metadata) error {
	path := l.MetadataPath(catalogID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filedb: create catalog directory: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("filedb: encode metadata: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("filedb: write metadata for %s: %w", catalogID, err)
	}
	return nil
}
