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
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/nexus-data/nexus-core/pkg/binary"
)

type fakeSource struct {
	regs         []CatalogRegistration
	catalog      Catalog
	timeRange    TimeRange
	availability []float64
	readValues   []float64 // F64-ish source values, status all Ok unless readStatus set
	readStatus   []binary.Status
	readErr      error
}

func (f *fakeSource) SetContext(context.Context, string, map[string]any, map[string]any, map[string]any, Logger) error {
	return nil
}

func (f *fakeSource) GetCatalogRegistrations(context.Context, string) ([]CatalogRegistration, error) {
	return f.regs, nil
}

func (f *fakeSource) EnrichCatalog(_ context.Context, id string) (Catalog, error) {
	c := f.catalog
	c.ID = id
	return c, nil
}

func (f *fakeSource) GetTimeRange(context.Context, string) (TimeRange, error) { return f.timeRange, nil }

func (f *fakeSource) GetAvailability(context.Context, string, time.Time, time.Time, time.Duration) ([]float64, error) {
	return f.availability, nil
}

func (f *fakeSource) Read(_ context.Context, _ string, _ int64, dt binary.DataType, _, _ time.Time, dst []byte, status []binary.Status) error {
	if f.readErr != nil {
		return f.readErr
	}
	for i := range status {
		if f.readStatus != nil {
			status[i] = f.readStatus[i]
		} else {
			status[i] = binary.StatusOk
		}
	}
	for i, v := range f.readValues {
		binary.PutF64Slice(dst[i*8:(i+1)*8], []float64{v})
		_ = dt
	}
	return nil
}

func (f *fakeSource) Close(context.Context) error { return nil }

func TestGetCatalogRegistrationsDedup(t *testing.T) {
	a := &fakeSource{regs: []CatalogRegistration{{ID: "/root/A"}, {ID: "B"}}}
	b := &fakeSource{regs: []CatalogRegistration{{ID: "/root/A"}, {ID: "/root/C"}}}
	c := NewController([]DataSource{a, b}, []Registration{{}, {}}, nil)

	got, err := c.GetCatalogRegistrations(context.Background(), "/root")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"/root/A": true, "/root/B": true, "/root/C": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for _, r := range got {
		if !want[r.ID] {
			t.Fatalf("unexpected registration %q", r.ID)
		}
	}
}

func TestGetCatalogEnrichmentDedupesGroupsAndSorts(t *testing.T) {
	a := &fakeSource{catalog: Catalog{
		Resources: []Resource{
			{Name: "zeta", Properties: map[string]any{"groups": []string{"g1", "g2", "g1"}}},
			{Name: "alpha"},
		},
	}}
	c := NewController([]DataSource{a}, []Registration{{}}, nil).WithVersionInfo("1.0", "1.0", "https://example.org")

	cat, err := c.GetCatalog(context.Background(), "/A")
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Resources) != 2 || cat.Resources[0].Name != "alpha" || cat.Resources[1].Name != "zeta" {
		t.Fatalf("expected sorted resources, got %+v", cat.Resources)
	}
	groups := cat.Resources[1].Properties["groups"].([]string)
	if len(groups) != 2 || groups[0] != "g1" || groups[1] != "g2" {
		t.Fatalf("expected deduped groups preserving order, got %v", groups)
	}
	if _, ok := cat.Resources[0].Properties["data-source"]; !ok {
		t.Fatal("expected data-source property to be stamped")
	}
}

func TestGetCatalogMismatchedIDIsFatal(t *testing.T) {
	a := &fakeSource{catalog: Catalog{ID: "/wrong"}}
	c := NewController([]DataSource{a}, []Registration{{}}, nil)
	if _, err := c.GetCatalog(context.Background(), "/A"); err == nil {
		t.Fatal("expected error for mismatched catalog ID")
	}
}

func TestGetTimeRangeMinMax(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &fakeSource{timeRange: TimeRange{Begin: t0, End: t0.Add(time.Hour)}}
	b := &fakeSource{timeRange: TimeRange{Begin: t0.Add(-time.Hour), End: t0.Add(2 * time.Hour)}}
	c := NewController([]DataSource{a, b}, []Registration{{}, {}}, nil)

	tr, err := c.GetTimeRange(context.Background(), "/A")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Begin.Equal(t0.Add(-time.Hour)) || !tr.End.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("GetTimeRange = %+v, want min begin / max end", tr)
	}
}

func TestGetAvailabilityAverages(t *testing.T) {
	a := &fakeSource{availability: []float64{1, math.NaN()}}
	b := &fakeSource{availability: []float64{0.5, math.NaN()}}
	c := NewController([]DataSource{a, b}, []Registration{{}, {}}, nil)

	t0 := time.Unix(0, 0)
	got, err := c.GetAvailability(context.Background(), "/A", t0, t0.Add(2*time.Hour), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 buckets", got)
	}
	if math.Abs(got[0]-0.75) > 1e-9 {
		t.Fatalf("bucket 0 = %v, want 0.75", got[0])
	}
	if !math.IsNaN(got[1]) {
		t.Fatalf("bucket 1 = %v, want NaN (all sources NaN)", got[1])
	}
}

func TestGetAvailabilityTooManyBuckets(t *testing.T) {
	c := NewController(nil, nil, nil)
	t0 := time.Unix(0, 0)
	_, err := c.GetAvailability(context.Background(), "/A", t0, t0.Add(2000*time.Hour), time.Hour)
	if err == nil {
		t.Fatal("expected validation error for >1000 buckets")
	}
}

func TestReadOriginalAppliesStatusMasking(t *testing.T) {
	src := &fakeSource{
		readValues: []float64{10, 20, 30},
		readStatus: []binary.Status{binary.StatusOk, binary.StatusNone, binary.StatusOk},
	}
	c := NewController([]DataSource{src}, []Registration{{}}, nil)

	var buf bytes.Buffer
	req := ReadRequest{
		CatalogID:    "/A",
		Resource:     "r",
		SamplePeriod: int64(time.Hour),
		DataType:     binary.F64,
		Writer:       &buf,
	}
	t0 := time.Unix(0, 0)
	if err := c.Read(context.Background(), t0, t0.Add(3*time.Hour), []ReadRequest{req}, nil); err != nil {
		t.Fatal(err)
	}
	got := binary.ReadF64Slice(buf.Bytes(), 3)
	if got[0] != 10 || !math.IsNaN(got[1]) || got[2] != 30 {
		t.Fatalf("got %v, want [10 NaN 30]", got)
	}
}
