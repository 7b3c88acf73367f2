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

// Package api defines the JSON request/response shapes of the HTTP
// surface. The transport itself is out of scope for this
// repository; these are the contract types a real HTTP layer binds to.
// No other package or CLI command of this module uses them.
package api

import "time"

// SearchItemsRequest is the body of POST /catalogs/search-items.
type SearchItemsRequest struct {
	ResourcePaths []string `json:"resourcePaths"`
}

// Representation is one (samplePeriod, kind) view of a resource.
type Representation struct {
	SamplePeriod string `json:"samplePeriod"`
	Kind         string `json:"kind"`
	DataType     string `json:"dataType"`
}

// CatalogItem is the resolved form of one resource path, returned per
// path by POST /catalogs/search-items.
type CatalogItem struct {
	CatalogID      string         `json:"catalogId"`
	Resource       string         `json:"resource"`
	Representation Representation `json:"representation"`
}

// SearchItemsResponse maps each requested resource path to its item.
type SearchItemsResponse map[string]CatalogItem

// Resource is one measurement series within a catalog.
type Resource struct {
	Name            string           `json:"name"`
	Representations []Representation `json:"representations"`
	Properties      map[string]any   `json:"properties,omitempty"`
}

// Catalog is the enriched catalog returned by GET /catalogs/{id}.
type Catalog struct {
	ID         string         `json:"id"`
	Resources  []Resource     `json:"resources"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CatalogInfo is one entry of GET /catalogs/{id}/child-catalog-infos.
type CatalogInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Contact    string `json:"contact,omitempty"`
	License    string `json:"license,omitempty"`
	IsReadable bool   `json:"isReadable"`
	IsWritable bool   `json:"isWritable"`
}

// TimeRangeResponse is the body of GET /catalogs/{id}/timerange.
type TimeRangeResponse struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// AvailabilityResponse is the body of
// GET /catalogs/{id}/availability?begin&end&step: one fraction (or
// NaN, serialized as null) per step bucket.
type AvailabilityResponse struct {
	Data []*float64 `json:"data"`
}

// AttachmentInfo describes one attachment of a catalog.
type AttachmentInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	SHA256      string `json:"sha256"`
}

// MetadataRecord is the body of GET/PUT /catalogs/{id}/metadata.
type MetadataRecord struct {
	Contact   string            `json:"contact,omitempty"`
	Groups    []string          `json:"groups,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty"`
}

// JobStatus reports an asynchronous job's progress, polled by clients
// of long-running operations like a wide cache clear.
type JobStatus struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	CatalogID   string     `json:"catalogId"`
	State       string     `json:"state"`
	Progress    float64    `json:"progress"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}
