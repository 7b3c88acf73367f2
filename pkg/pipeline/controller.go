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

package pipeline

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/process"
)

// CacheService is the subset of pkg/cache's Service the controller
// needs, kept as an interface here so pkg/pipeline does not import
// pkg/cache directly (avoiding an import cycle risk and keeping the
// controller testable with a fake).
type CacheService interface {
	Enabled(catalogID string) bool
	Read(ctx context.Context, catalogID, resource string, samplePeriod, begin, end int64, target []float64) ([]Interval, error)
	Write(ctx context.Context, catalogID, resource string, samplePeriod, begin int64, values []float64) error
}

// Interval mirrors cache.Interval so callers of CacheService don't need
// to import pkg/cache just for this struct.
type Interval struct {
	Begin int64
	End   int64
}

// Controller executes one pipeline (an ordered list of sources and
// their registrations) for catalog enrichment and for reads: a small
// lifecycle interface driven generically across an ordered slice.
type Controller struct {
	sources       []DataSource
	registrations []Registration
	cache         CacheService
	aggThreshold  float64
	repositoryURL string
	nexusVersion  string
	sourceVersion string
}

// NewController constructs a Controller over sources (index-aligned
// with registrations). SetContext is
// not called here; call Init once the request-scoped configuration is
// known.
func NewController(sources []DataSource, registrations []Registration, cache CacheService) *Controller {
	return &Controller{
		sources:       sources,
		registrations: registrations,
		cache:         cache,
		aggThreshold:  process.DefaultNaNThreshold,
	}
}

// WithAggregationThreshold overrides the default NaN threshold used by
// aggregated reads.
func (c *Controller) WithAggregationThreshold(threshold float64) *Controller {
	c.aggThreshold = threshold
	return c
}

// WithVersionInfo records the values the "data-source" enrichment
// property carries.
func (c *Controller) WithVersionInfo(nexusVersion, sourceVersion, repositoryURL string) *Controller {
	c.nexusVersion = nexusVersion
	c.sourceVersion = sourceVersion
	c.repositoryURL = repositoryURL
	return c
}

// Init calls SetContext on every (source, registration) pair exactly
// once.
func (c *Controller) Init(ctx context.Context, systemConfig, requestConfig map[string]any, logger Logger) error {
	if logger == nil {
		logger = NopLogger{}
	}
	for i, src := range c.sources {
		reg := c.registrations[i]
		if err := src.SetContext(ctx, reg.ResourceLocator, systemConfig, reg.Configuration, requestConfig, logger); err != nil {
			return nexuserr.Fatal("pipeline: SetContext failed for source %d (%s): %v", i, reg.Type, err)
		}
	}
	return nil
}

// GetCatalogRegistrations unions the catalog registrations contributed
// by every source, keyed by path (first source wins), rewriting
// relative paths under parentPath and rejecting absolute paths that
// escape it.
func (c *Controller) GetCatalogRegistrations(ctx context.Context, parentPath string) ([]CatalogRegistration, error) {
	seen := make(map[string]bool)
	var out []CatalogRegistration
	for _, src := range c.sources {
		regs, err := src.GetCatalogRegistrations(ctx, parentPath)
		if err != nil {
			return nil, err
		}
		for _, r := range regs {
			id := r.ID
			if !strings.HasPrefix(id, "/") {
				id = strings.TrimSuffix(parentPath, "/") + "/" + id
			} else if !strings.HasPrefix(id, parentPath) {
				return nil, nexuserr.Validation("pipeline: absolute catalog registration %q does not start with parent %q", id, parentPath)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, CatalogRegistration{ID: id, Transient: r.Transient, LinkTarget: r.LinkTarget})
		}
	}
	return out, nil
}

// GetCatalog runs the enrichment chain: each source
// adds to the running catalog in pipeline order; afterward the
// controller validates the returned ID, deduplicates each resource's
// "groups" property preserving order, stamps a "data-source" property
// per resource, and sorts resources by ID.
func (c *Controller) GetCatalog(ctx context.Context, id string) (Catalog, error) {
	cat := Catalog{ID: id, Properties: map[string]any{}}
	for pos, src := range c.sources {
		enriched, err := src.EnrichCatalog(ctx, id)
		if err != nil {
			return Catalog{}, err
		}
		if enriched.ID != id {
			return Catalog{}, nexuserr.Fatal("pipeline: source %d returned catalog ID %q, requested %q", pos, enriched.ID, id)
		}
		cat = mergeCatalog(cat, enriched, pos)
	}

	for i := range cat.Resources {
		dedupeGroups(&cat.Resources[i])
		stampDataSource(&cat.Resources[i], c.nexusVersion, c.sourceVersion, c.repositoryURL)
	}
	sort.Slice(cat.Resources, func(i, j int) bool { return cat.Resources[i].Name < cat.Resources[j].Name })
	return cat, nil
}

func mergeCatalog(base, add Catalog, pipelinePosition int) Catalog {
	resourceIdx := make(map[string]int, len(base.Resources))
	for i, r := range base.Resources {
		resourceIdx[r.Name] = i
	}
	for _, r := range add.Resources {
		if r.Properties == nil {
			r.Properties = map[string]any{}
		}
		if _, ok := r.Properties["nexus.pipeline-position"]; !ok {
			r.Properties["nexus.pipeline-position"] = pipelinePosition
		}
		if i, ok := resourceIdx[r.Name]; ok {
			existing := &base.Resources[i]
			existing.Representations = append(existing.Representations, r.Representations...)
			for k, v := range r.Properties {
				existing.Properties[k] = v
			}
		} else {
			resourceIdx[r.Name] = len(base.Resources)
			base.Resources = append(base.Resources, r)
		}
	}
	for k, v := range add.Properties {
		base.Properties[k] = v
	}
	return base
}

func dedupeGroups(r *Resource) {
	raw, ok := r.Properties["groups"]
	if !ok {
		return
	}
	groups, ok := raw.([]string)
	if !ok {
		return
	}
	seen := make(map[string]bool, len(groups))
	out := groups[:0]
	for _, g := range groups {
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	r.Properties["groups"] = out
}

func stampDataSource(r *Resource, nexusVersion, sourceVersion, repositoryURL string) {
	pos := 0
	if p, ok := r.Properties["nexus.pipeline-position"].(int); ok {
		pos = p
	}
	r.Properties["data-source"] = map[string]any{
		"nexusVersion":     nexusVersion,
		"sourceVersion":    sourceVersion,
		"repositoryUrl":    repositoryURL,
		"pipelinePosition": pos,
	}
}

// GetTimeRange returns the minimum begin and maximum end across every
// source.
func (c *Controller) GetTimeRange(ctx context.Context, id string) (TimeRange, error) {
	var result TimeRange
	first := true
	for _, src := range c.sources {
		tr, err := src.GetTimeRange(ctx, id)
		if err != nil {
			return TimeRange{}, err
		}
		if first {
			result = tr
			first = false
			continue
		}
		if tr.Begin.Before(result.Begin) {
			result.Begin = tr.Begin
		}
		if tr.End.After(result.End) {
			result.End = tr.End
		}
	}
	return result, nil
}

// GetAvailability computes ceil((end-begin)/step) buckets, querying
// every source concurrently for each bucket and averaging the
// non-NaN per-source values (NaN if all sources report NaN), per
// the per-bucket average contract, indexing buckets consistently by
// their own index. The caller must ensure the bucket count is <= 1000.
func (c *Controller) GetAvailability(ctx context.Context, id string, begin, end time.Time, step time.Duration) ([]float64, error) {
	bucketCount := int(math.Ceil(float64(end.Sub(begin)) / float64(step)))
	if bucketCount > 1000 {
		return nil, nexuserr.Validation("pipeline: availability request spans %d buckets, exceeding the 1000 limit", bucketCount)
	}
	if bucketCount <= 0 {
		return nil, nil
	}

	perSource := make([][]float64, len(c.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range c.sources {
		i, src := i, src
		g.Go(func() error {
			vals, err := src.GetAvailability(gctx, id, begin, end, step)
			if err != nil {
				return err
			}
			perSource[i] = vals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, bucketCount)
	for j := 0; j < bucketCount; j++ {
		var sum float64
		var count int
		for _, vals := range perSource {
			if j >= len(vals) {
				continue
			}
			v := vals[j]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}
		if count == 0 {
			out[j] = math.NaN()
		} else {
			out[j] = sum / float64(count)
		}
	}
	return out, nil
}
