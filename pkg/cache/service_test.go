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

package cache

import (
	"context"
	"regexp"
	"testing"

	"github.com/nexus-data/nexus-core/pkg/filedb"
)

func TestServiceWriteReadAcrossBuckets(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(filedb.Layout{CacheRoot: dir}, DefaultFilePeriod, nil)
	ctx := context.Background()

	samplePeriod := hour
	// begin 12h before midnight of day 1, spanning into day 1: exercises
	// the multi-bucket split in Write/Read.
	begin := 12 * hour
	values := make([]float64, 24) // spans [12:00 day0, 12:00 day1)
	for i := range values {
		values[i] = float64(i)
	}
	if err := svc.Write(ctx, "/A/B", "temp", samplePeriod, begin, values); err != nil {
		t.Fatalf("Write: %v", err)
	}

	target := make([]float64, 24)
	uncached, err := svc.Read(ctx, "/A/B", "temp", samplePeriod, begin, begin+24*samplePeriod, target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(uncached) != 0 {
		t.Fatalf("expected no uncached windows, got %v", uncached)
	}
	for i, v := range values {
		if target[i] != v {
			t.Fatalf("target[%d] = %v, want %v", i, target[i], v)
		}
	}
}

func TestServiceEnabledCachePattern(t *testing.T) {
	svc := NewService(filedb.Layout{CacheRoot: t.TempDir()}, DefaultFilePeriod, nil)
	if !svc.Enabled("/anything") {
		t.Fatal("nil cachePattern must mean cache is always on")
	}

	pattern := regexp.MustCompile(`^/A/`)
	svc2 := NewService(filedb.Layout{CacheRoot: t.TempDir()}, DefaultFilePeriod, pattern)
	if !svc2.Enabled("/A/B") {
		t.Fatal("expected /A/B to match cache pattern")
	}
	if svc2.Enabled("/C/D") {
		t.Fatal("expected /C/D to not match cache pattern")
	}
}

func TestServiceClearDeletesBucketsInRange(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(filedb.Layout{CacheRoot: dir}, DefaultFilePeriod, nil)
	ctx := context.Background()

	samplePeriod := hour
	if err := svc.Write(ctx, "/A", "r", samplePeriod, 0, []float64{1}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Write(ctx, "/A", "r", samplePeriod, day, []float64{1}); err != nil {
		t.Fatal(err)
	}

	var visited []int64
	if err := svc.Clear(ctx, "/A", "r", samplePeriod, 0, day, func(b int64) { visited = append(visited, b) }); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(visited) == 0 {
		t.Fatal("expected Clear to report at least one bucket")
	}

	target := make([]float64, 1)
	uncached, err := svc.Read(ctx, "/A", "r", samplePeriod, 0, samplePeriod, target)
	if err != nil {
		t.Fatal(err)
	}
	if len(uncached) != 1 {
		t.Fatalf("expected bucket 0 to be cleared (uncached), got %v", uncached)
	}

	// Bucket starting at `day` was outside [0, day) and must survive.
	target2 := make([]float64, 1)
	uncached2, err := svc.Read(ctx, "/A", "r", samplePeriod, day, day+samplePeriod, target2)
	if err != nil {
		t.Fatal(err)
	}
	if len(uncached2) != 0 {
		t.Fatal("expected bucket at `day` to survive Clear([0,day))")
	}
}
