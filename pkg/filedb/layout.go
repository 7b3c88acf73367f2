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

// Package filedb owns the on-disk layout for everything the data plane
// core persists outside the cache entry's own internal format: cache
// file paths, catalog attachments, and metadata records.
package filedb

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Layout resolves the well-known directories under a Nexus packages
// root: Cache, Catalogs, Artifacts, Packages, Config.
type Layout struct {
	CacheRoot     string
	CatalogsRoot  string
	ArtifactsRoot string
	PackagesRoot  string
	ConfigRoot    string
}

// flattenCatalogID turns an absolute catalog ID ("/A/B/C") into a
// filesystem-safe path segment, matching the "catalog_path_flattened"
// naming used by the cache directory tree.
func flattenCatalogID(catalogID string) string {
	trimmed := strings.Trim(catalogID, "/")
	if trimmed == "" {
		return "_root_"
	}
	return strings.ReplaceAll(trimmed, "/", "_")
}

// CacheFilePath returns the bucket file path for a
// (catalogID, resource, samplePeriodNs, fileBegin) tuple, following
// the layout:
//
//	<packagesRoot>/cache/<catalog_path_flattened>/<resource>/<samplePeriodNs>/<yyyy>/<MM>/<dd>/<fileBeginIso>.bin
func (l Layout) CacheFilePath(catalogID, resource string, samplePeriodNs int64, fileBegin time.Time) string {
	fileBegin = fileBegin.UTC()
	isoName := strings.ReplaceAll(fileBegin.Format(time.RFC3339), ":", "-") + ".bin"
	return filepath.Join(
		l.CacheRoot,
		flattenCatalogID(catalogID),
		resource,
		strconv.FormatInt(samplePeriodNs, 10),
		fmt.Sprintf("%04d", fileBegin.Year()),
		fmt.Sprintf("%02d", int(fileBegin.Month())),
		fmt.Sprintf("%02d", fileBegin.Day()),
		isoName,
	)
}

// AttachmentPath returns the on-disk path for an attachment's body.
func (l Layout) AttachmentPath(catalogID, name string) string {
	return filepath.Join(l.CatalogsRoot, flattenCatalogID(catalogID), "attachments", name)
}

// MetadataPath returns the on-disk path for a catalog's persisted
// metadata record.
func (l Layout) MetadataPath(catalogID string) string {
	return filepath.Join(l.CatalogsRoot, flattenCatalogID(catalogID), "metadata.json")
}

// LicensePath returns the on-disk path for a catalog's license text.
func (l Layout) LicensePath(catalogID string) string {
	return filepath.Join(l.CatalogsRoot, flattenCatalogID(catalogID), "LICENSE")
}

// ArtifactPath returns the on-disk path for a produced artifact blob,
// streamed back to clients by ID with no filename set.
func (l Layout) ArtifactPath(id string) string {
	return filepath.Join(l.ArtifactsRoot, id)
}
