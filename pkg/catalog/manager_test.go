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
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// fakeSource serves a fixed registration set and catalog contents.
type fakeSource struct {
	registrations map[string][]pipeline.CatalogRegistration
	catalogs      map[string]pipeline.Catalog
	enrichCount   map[string]int
}

func (f *fakeSource) SetContext(context.Context, string, map[string]any, map[string]any, map[string]any, pipeline.Logger) error {
	return nil
}

func (f *fakeSource) GetCatalogRegistrations(_ context.Context, parentPath string) ([]pipeline.CatalogRegistration, error) {
	return f.registrations[parentPath], nil
}

func (f *fakeSource) EnrichCatalog(_ context.Context, id string) (pipeline.Catalog, error) {
	if f.enrichCount == nil {
		f.enrichCount = map[string]int{}
	}
	f.enrichCount[id]++
	if cat, ok := f.catalogs[id]; ok {
		return cat, nil
	}
	return pipeline.Catalog{ID: id}, nil
}

func (f *fakeSource) GetTimeRange(context.Context, string) (pipeline.TimeRange, error) {
	return pipeline.TimeRange{}, nil
}

func (f *fakeSource) GetAvailability(context.Context, string, time.Time, time.Time, time.Duration) ([]float64, error) {
	return nil, nil
}

func (f *fakeSource) Read(context.Context, string, int64, binary.DataType, time.Time, time.Time, []byte, []binary.Status) error {
	return nil
}

func (f *fakeSource) Close(context.Context) error { return nil }

func controllerFor(src pipeline.DataSource) *pipeline.Controller {
	return pipeline.NewController([]pipeline.DataSource{src}, []pipeline.Registration{{Type: "fake"}}, nil)
}

func TestSoftLinkResolution(t *testing.T) {
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/":       {{ID: "/SOFT"}, {ID: "/A"}},
			"/SOFT":   {{ID: "/SOFT/A", LinkTarget: "/A/B/C"}, {ID: "/SOFT/B", LinkTarget: "/SOFT/A"}},
			"/A":      {{ID: "/A/B"}},
			"/A/B":    {{ID: "/A/B/C"}},
			"/A/B/C":  nil,
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", IsAdmin: true, Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	// /SOFT/B -> /SOFT/A -> /A/B/C resolves in two hops.
	c, err := m.GetContainer(context.Background(), "/SOFT/B", nil)
	if err != nil {
		t.Fatalf("GetContainer(/SOFT/B): %v", err)
	}
	if c.ID != "/A/B/C" {
		t.Fatalf("resolved to %s, want /A/B/C", c.ID)
	}
}

func TestSoftLinkDepthExceeded(t *testing.T) {
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/":     {{ID: "/SOFT"}},
			"/SOFT": {{ID: "/SOFT/X", LinkTarget: "/SOFT/X"}},
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	_, err := m.GetContainer(context.Background(), "/SOFT/X", nil)
	if !nexuserr.Is(err, nexuserr.KindNotFound) {
		t.Fatalf("self-referential soft link: got %v, want NotFound", err)
	}
}

func TestRegistrationClaimSkipping(t *testing.T) {
	adminSrc := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/": {{ID: "/SHARED"}},
		},
	}
	userSrc := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/": {{ID: "/SHARED"}, {ID: "/MINE"}},
		},
	}
	m := NewManager([]UserPipelines{
		{Username: "bob", Pipelines: []*pipeline.Controller{controllerFor(userSrc)}},
		{Username: "admin", IsAdmin: true, Pipelines: []*pipeline.Controller{controllerFor(adminSrc)}},
	}, nil)

	kids, err := m.Root().ChildCatalogContainers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	owners := map[string]string{}
	for _, k := range kids {
		owners[k.ID] = k.Owner
	}
	// Admins iterate first, so /SHARED belongs to admin despite bob
	// being listed first.
	if owners["/SHARED"] != "admin" {
		t.Errorf("/SHARED owned by %q, want admin", owners["/SHARED"])
	}
	if owners["/MINE"] != "bob" {
		t.Errorf("/MINE owned by %q, want bob", owners["/MINE"])
	}
}

func TestRelativeRegistrationReparenting(t *testing.T) {
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/": {{ID: "foo"}},
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	kids, err := m.Root().ChildCatalogContainers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 1 || kids[0].ID != "/foo" {
		t.Fatalf("got %+v, want single /foo child", kids)
	}
}

func TestTransientChildrenRefetch(t *testing.T) {
	calls := 0
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/":  {{ID: "/T", Transient: true}},
			"/T": {{ID: "/T/a"}},
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	kids, err := m.Root().ChildCatalogContainers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	tNode := kids[0]
	if !tNode.Transient {
		t.Fatal("expected /T to be transient")
	}
	for i := 0; i < 2; i++ {
		if _, err := tNode.Catalog(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	calls = src.enrichCount["/T"]
	if calls != 2 {
		t.Fatalf("transient catalog enriched %d times, want 2", calls)
	}

	// Non-transient nodes enrich once.
	aKids, err := tNode.ChildCatalogContainers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := aKids[0].Catalog(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := src.enrichCount["/T/a"]; got != 1 {
		t.Fatalf("non-transient catalog enriched %d times, want 1", got)
	}
}

func TestTryFindIdempotence(t *testing.T) {
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/":  {{ID: "/A"}},
			"/A": {{ID: "/A/B"}},
		},
		catalogs: map[string]pipeline.Catalog{
			"/A/B": {
				ID: "/A/B",
				Resources: []pipeline.Resource{{
					Name: "temperature",
					Representations: []pipeline.Representation{{
						SamplePeriod: int64(time.Second),
						Kind:         pipeline.Original,
						DataType:     binary.F32,
					}},
				}},
			},
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	const path = "/A/B/temperature/10_min_mean#base=1_s"
	first, err := m.TryFind(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("TryFind: %v", err)
	}
	if first.BaseItem == nil {
		t.Fatal("processed request must carry a base item")
	}
	if first.Item.Representation.DataType != binary.F64 {
		t.Errorf("derived item data type = %v, want F64", first.Item.Representation.DataType)
	}
	if first.Item.Representation.SamplePeriod != int64(10*time.Minute) {
		t.Errorf("derived sample period = %d", first.Item.Representation.SamplePeriod)
	}

	second, err := m.TryFind(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("TryFind (repeat): %v", err)
	}
	if !reflect.DeepEqual(first.Item, second.Item) || !reflect.DeepEqual(first.BaseItem, second.BaseItem) {
		t.Error("TryFind is not idempotent within one catalog-state lifetime")
	}
	if first.Container != second.Container {
		t.Error("TryFind returned distinct containers for the same path")
	}
}

func TestTryFindOriginal(t *testing.T) {
	src := &fakeSource{
		registrations: map[string][]pipeline.CatalogRegistration{
			"/":  {{ID: "/A"}},
			"/A": nil,
		},
		catalogs: map[string]pipeline.Catalog{
			"/A": {
				ID: "/A",
				Resources: []pipeline.Resource{{
					Name: "pressure",
					Representations: []pipeline.Representation{{
						SamplePeriod: int64(100 * time.Millisecond),
						Kind:         pipeline.Original,
						DataType:     binary.I16,
					}},
				}},
			},
		},
	}
	m := NewManager([]UserPipelines{{Username: "alice", Pipelines: []*pipeline.Controller{controllerFor(src)}}}, nil)

	req, err := m.TryFind(context.Background(), "/A/pressure/100_ms", nil)
	if err != nil {
		t.Fatalf("TryFind: %v", err)
	}
	if req.BaseItem != nil {
		t.Error("original request must not carry a base item")
	}
	if req.Item.Representation.DataType != binary.I16 {
		t.Errorf("data type = %v, want I16", req.Item.Representation.DataType)
	}

	_, err = m.TryFind(context.Background(), "/A/pressure/1_s", nil)
	var ne *nexuserr.Error
	if !errors.As(err, &ne) || ne.Kind != nexuserr.KindNotFound {
		t.Fatalf("unknown representation: got %v, want NotFound", err)
	}
}
