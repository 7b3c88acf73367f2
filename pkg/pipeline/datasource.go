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

// Package pipeline implements the data source controller:
// loading an ordered list of sources, running catalog
// enrichment, availability, time-range, and read operations, merging
// original reads, and driving aggregated/resampled reads through the
// cache and processing services.
package pipeline

import (
	"context"
	"time"

	"github.com/nexus-data/nexus-core/pkg/binary"
)

// Logger is the logging seam every package in this module accepts:
// library code depends on this small
// interface so it stays testable, and the cli package's consoleLogger
// adapts the package-level github.com/minio/pkg/v3/console functions to it.
type Logger interface {
	Printf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything. Useful as a default and in tests.
type NopLogger struct{}

func (NopLogger) Printf(string, ...any) {}
func (NopLogger) Errorf(string, ...any) {}

// Registration is one entry of a pipeline:
// (type, resourceLocator?, configuration, infoUrl?).
type Registration struct {
	Type              string
	ResourceLocator   string
	Configuration     map[string]any
	InfoURL           string
	ReleasePattern    string
	VisibilityPattern string
}

// CatalogRegistration is one entry returned by a source's
// GetCatalogRegistrations: a catalog ID this source is willing to
// claim, along with whether the containing catalog is transient
// (always re-fetched rather than cached) and an optional
// soft-link target the node's content is taken from.
type CatalogRegistration struct {
	ID         string
	Transient  bool
	LinkTarget string
}

// TimeRange is a source's reported [Begin, End) for a catalog item.
type TimeRange struct {
	Begin time.Time
	End   time.Time
}

// ReadRequest describes one representation to read for one time chunk,
// and the pipe its output bytes should be written to. BaseItem is
// non-nil iff the representation is processed (resampled or
// aggregated).
type ReadRequest struct {
	CatalogID    string
	Resource     string
	SamplePeriod int64 // nanoseconds
	DataType     binary.DataType
	Kind         Kind

	// BaseItem is set iff this is a processed (resampled/aggregated)
	// read; its SamplePeriod/DataType describe the underlying original
	// representation driving the computation.
	BaseItem *BaseItem

	// Pipeline position of the resource's Original representation, used
	// to route original reads to the correct source in the stack.
	PipelinePosition int

	// Writer receives the resulting bytes: dense little-endian F64 for
	// processed reads, densely-widened F64 for original reads that went
	// through WidenToF64. Writes within one ReadRequest occur in
	// strictly increasing time order across chunks.
	Writer interface{ Write([]byte) (int, error) }
}

// BaseItem is the base representation backing a processed read.
type BaseItem struct {
	SamplePeriod int64
	DataType     binary.DataType
}

// Kind mirrors resourcepath.Kind without importing it, so pipeline
// backends don't need to depend on the path-parsing package.
type Kind int

const (
	Original Kind = iota
	Resampled
	Min
	Max
	Mean
	Sum
	MeanPolarDeg
	MinBitwise
	MaxBitwise
)

// AvailabilityBucket is one step of a GetAvailability response: the
// fraction (0..1) of samples present in [Begin, End), or NaN if no
// source reported a value for this bucket.
type AvailabilityBucket struct {
	Begin time.Time
	End   time.Time
	Value float64
}

// ProgressFunc receives monotonically non-decreasing progress in [0,1]
// during a Read call; values are monotonic non-decreasing within a
// single Read invocation.
type ProgressFunc func(fraction float64)

// DataSource is the lifecycle interface every pipeline stage backend
// implements: a small interface implemented once per backend and
// driven generically by the Controller.
type DataSource interface {
	// SetContext is called exactly once per (source, registration) pair
	// before any other method.
	SetContext(ctx context.Context, resourceLocator string, systemConfig, sourceConfig, requestConfig map[string]any, logger Logger) error

	// GetCatalogRegistrations returns the catalog IDs this source
	// contributes under parentPath.
	GetCatalogRegistrations(ctx context.Context, parentPath string) ([]CatalogRegistration, error)

	// EnrichCatalog adds resources, representations, and properties to
	// catalog (identified by id), returning the enriched form.
	EnrichCatalog(ctx context.Context, id string) (Catalog, error)

	// GetTimeRange returns this source's [begin, end) for id.
	GetTimeRange(ctx context.Context, id string) (TimeRange, error)

	// GetAvailability returns this source's per-bucket average
	// availability (fraction of samples present, or NaN) for
	// ceil((end-begin)/step) buckets.
	GetAvailability(ctx context.Context, id string, begin, end time.Time, step time.Duration) ([]float64, error)

	// Read reads raw bytes and parallel per-sample status for a single
	// original (non-processed) representation across [begin, end) into
	// dst/status, whose lengths are exactly
	// (end-begin)/samplePeriod * dataType.Size() and
	// (end-begin)/samplePeriod respectively.
	Read(ctx context.Context, id string, samplePeriod int64, dataType binary.DataType, begin, end time.Time, dst []byte, status []binary.Status) error

	// Close releases any held resources (HTTP clients, connections).
	Close(ctx context.Context) error
}

// Catalog is the pipeline-facing view of a catalog's contents: just
// enough for EnrichCatalog to add to and the controller to merge,
// independent of the fuller tree model in pkg/catalog.
type Catalog struct {
	ID         string
	Resources  []Resource
	Properties map[string]any
}

// Resource is one named measurement series with its representations.
type Resource struct {
	Name            string
	Representations []Representation
	Properties      map[string]any
}

// Representation is a concrete (samplePeriod, kind) view of a resource.
type Representation struct {
	SamplePeriod int64
	Kind         Kind
	DataType     binary.DataType
}
