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

package catalog

import (
	"context"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
	"github.com/nexus-data/nexus-core/pkg/resourcepath"
)

// CatalogItem pins one representation of one resource.
type CatalogItem struct {
	CatalogID      string
	Resource       string
	Representation pipeline.Representation
	// PipelinePosition routes original reads to the producing source.
	// Default 0.
	PipelinePosition int
}

// CatalogItemRequest is the (item, baseItem?, container) triple a read
// operates on: BaseItem is present iff the representation is processed.
type CatalogItemRequest struct {
	Item      CatalogItem
	BaseItem  *CatalogItem
	Container *Container
}

// TryFind parses a resource path, locates its catalog container via the
// prefix walk, obtains the lazy catalog, and looks up the item.
// Original requests return the item directly; processed requests return
// the base item plus a derived F64 item with the requested
// (samplePeriod, kind).
func (m *Manager) TryFind(ctx context.Context, path string, checker *AccessChecker) (CatalogItemRequest, error) {
	p, err := resourcepath.Parse(path)
	if err != nil {
		return CatalogItemRequest{}, err
	}

	container, err := m.GetContainer(ctx, p.CatalogID, checker)
	if err != nil {
		return CatalogItemRequest{}, err
	}
	cat, err := container.Catalog(ctx)
	if err != nil {
		return CatalogItemRequest{}, err
	}

	res, ok := findResource(cat, p.Resource)
	if !ok {
		return CatalogItemRequest{}, nexuserr.NotFound("catalog: resource %s not found in %s", p.Resource, container.ID)
	}
	position := pipelinePosition(res)

	if p.Kind == resourcepath.Original {
		rep, ok := findRepresentation(res, int64(p.SamplePeriod), pipeline.Original)
		if !ok {
			return CatalogItemRequest{}, nexuserr.NotFound("catalog: %s has no original representation at %s", p.Resource, p.SamplePeriod)
		}
		return CatalogItemRequest{
			Item: CatalogItem{
				CatalogID:        container.ID,
				Resource:         res.Name,
				Representation:   rep,
				PipelinePosition: position,
			},
			Container: container,
		}, nil
	}

	baseRep, ok := findRepresentation(res, int64(p.BaseSamplePeriod), pipeline.Original)
	if !ok {
		return CatalogItemRequest{}, nexuserr.NotFound("catalog: %s has no original representation at base %s", p.Resource, p.BaseSamplePeriod)
	}
	base := &CatalogItem{
		CatalogID:        container.ID,
		Resource:         res.Name,
		Representation:   baseRep,
		PipelinePosition: position,
	}
	item := CatalogItem{
		CatalogID: container.ID,
		Resource:  res.Name,
		Representation: pipeline.Representation{
			SamplePeriod: int64(p.SamplePeriod),
			Kind:         toPipelineKind(p.Kind),
			DataType:     binary.F64,
		},
		PipelinePosition: position,
	}
	return CatalogItemRequest{Item: item, BaseItem: base, Container: container}, nil
}

func findResource(cat pipeline.Catalog, name string) (pipeline.Resource, bool) {
	for _, r := range cat.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return pipeline.Resource{}, false
}

func findRepresentation(res pipeline.Resource, samplePeriod int64, kind pipeline.Kind) (pipeline.Representation, bool) {
	for _, rep := range res.Representations {
		if rep.SamplePeriod == samplePeriod && rep.Kind == kind {
			return rep, true
		}
	}
	return pipeline.Representation{}, false
}

func pipelinePosition(res pipeline.Resource) int {
	if res.Properties == nil {
		return 0
	}
	if p, ok := res.Properties["nexus.pipeline-position"].(int); ok {
		return p
	}
	return 0
}

func toPipelineKind(k resourcepath.Kind) pipeline.Kind {
	switch k {
	case resourcepath.Resampled:
		return pipeline.Resampled
	case resourcepath.Min:
		return pipeline.Min
	case resourcepath.Max:
		return pipeline.Max
	case resourcepath.Mean:
		return pipeline.Mean
	case resourcepath.Sum:
		return pipeline.Sum
	case resourcepath.MeanPolarDeg:
		return pipeline.MeanPolarDeg
	case resourcepath.MinBitwise:
		return pipeline.MinBitwise
	case resourcepath.MaxBitwise:
		return pipeline.MaxBitwise
	default:
		return pipeline.Original
	}
}
