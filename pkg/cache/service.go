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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-data/nexus-core/pkg/filedb"
)

// DefaultFilePeriod is the default cache file bucket width: one file per
// UTC day.
const DefaultFilePeriod = int64(24 * time.Hour)

// Service routes cache reads and writes to the Entry responsible for
// each file bucket they touch, holding a per-bucket exclusive lock for
// the duration of the operation so concurrent readers/writers of the
// same bucket serialize while distinct buckets proceed in parallel.
type Service struct {
	layout       filedb.Layout
	filePeriod   int64
	cachePattern *regexp.Regexp // nil means cache is always enabled.

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewService constructs a Service rooted at layout.CacheRoot. filePeriod
// is the bucket width in nanoseconds (pass DefaultFilePeriod for one
// file per UTC day); cachePattern, if non-nil, restricts caching to
// catalog IDs it matches — a nil pattern means cache is always on.
func NewService(layout filedb.Layout, filePeriod int64, cachePattern *regexp.Regexp) *Service {
	if filePeriod <= 0 {
		filePeriod = DefaultFilePeriod
	}
	return &Service{
		layout:       layout,
		filePeriod:   filePeriod,
		cachePattern: cachePattern,
		locks:        make(map[string]*semaphore.Weighted),
	}
}

// Enabled reports whether catalogID participates in caching, per
// the cache bypass rule: a catalog not matching the pattern reads as
// if nothing were cached and never updates the cache.
func (s *Service) Enabled(catalogID string) bool {
	if s.cachePattern == nil {
		return true
	}
	return s.cachePattern.MatchString(catalogID)
}

// bucketBegin returns the start tick of the bucket containing tick,
// aligned to the Unix epoch (so bucket addressing stays deterministic
// "aligned to fileBegin.Unix() % filePeriod == 0 from the Unix epoch").
func (s *Service) bucketBegin(tick int64) int64 {
	return tick - floorMod(tick, s.filePeriod)
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func (s *Service) lockFor(path string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[path] = l
	}
	return l
}

// withEntry opens the bucket at fileBegin for (catalogID, resource,
// samplePeriod), holding its per-bucket lock for the duration of fn.
func (s *Service) withEntry(ctx context.Context, catalogID, resource string, samplePeriod, fileBegin int64, fn func(*Entry) error) error {
	path := s.layout.CacheFilePath(catalogID, resource, samplePeriod, time.Unix(0, fileBegin).UTC())
	lock := s.lockFor(path)
	if err := lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("cache: acquire bucket lock: %w", err)
	}
	defer lock.Release(1)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create bucket directory: %w", err)
	}
	entry, err := Open(path, fileBegin, s.filePeriod, samplePeriod)
	if err != nil {
		return err
	}
	defer entry.Close()
	return fn(entry)
}

// Read fills target (len(target) == (end-begin)/samplePeriod) with
// whatever cached samples are already present across every bucket the
// [begin,end) range spans, returning the disjoint uncached sub-windows
// across the whole range in ascending order.
func (s *Service) Read(ctx context.Context, catalogID, resource string, samplePeriod, begin, end int64, target []float64) ([]Interval, error) {
	var uncached []Interval
	cursor := begin
	for cursor < end {
		fileBegin := s.bucketBegin(cursor)
		bucketEnd := fileBegin + s.filePeriod
		segEnd := end
		if bucketEnd < segEnd {
			segEnd = bucketEnd
		}
		n := (segEnd - cursor) / samplePeriod
		seg := target[(cursor-begin)/samplePeriod : (cursor-begin)/samplePeriod+n]

		var segUncached []Interval
		err := s.withEntry(ctx, catalogID, resource, samplePeriod, fileBegin, func(e *Entry) error {
			u, err := e.Read(cursor, segEnd, seg)
			segUncached = u
			return err
		})
		if err != nil {
			return nil, err
		}
		uncached = mergeAppend(uncached, segUncached)
		cursor = segEnd
	}
	return uncached, nil
}

// Write stores values (len(values) samples at samplePeriod spacing,
// starting at begin) across however many buckets [begin, begin+N*samplePeriod)
// spans.
func (s *Service) Write(ctx context.Context, catalogID, resource string, samplePeriod, begin int64, values []float64) error {
	cursor := begin
	idx := 0
	for idx < len(values) {
		fileBegin := s.bucketBegin(cursor)
		bucketEnd := fileBegin + s.filePeriod
		n := (bucketEnd - cursor) / samplePeriod
		if int64(len(values)-idx) < n {
			n = int64(len(values) - idx)
		}
		seg := values[idx : int64(idx)+n]

		if err := s.withEntry(ctx, catalogID, resource, samplePeriod, fileBegin, func(e *Entry) error {
			return e.Write(cursor, seg)
		}); err != nil {
			return err
		}
		cursor += n * samplePeriod
		idx += int(n)
	}
	return nil
}

// mergeAppend appends more to uncached, coalescing a touching boundary
// between the last element of uncached and the first of more.
func mergeAppend(uncached, more []Interval) []Interval {
	for _, iv := range more {
		if len(uncached) > 0 && uncached[len(uncached)-1].End == iv.Begin {
			uncached[len(uncached)-1].End = iv.End
			continue
		}
		uncached = append(uncached, iv)
	}
	return uncached
}

// Buckets enumerates the distinct bucket begin ticks visited by walking
// the UTC days from the one containing begin through the one containing
// end (both included), one day at a time, deduplicated and in ascending
// order — Clear walks day by day so callers can report progress,
// regardless of how s.filePeriod relates to a day.
func (s *Service) Buckets(begin, end int64) []int64 {
	const day = int64(24 * time.Hour)
	beginDay := begin - floorMod(begin, day)
	endDay := end - floorMod(end, day)
	if endDay < beginDay {
		return nil
	}
	var out []int64
	for d := beginDay; d <= endDay; d += day {
		b := s.bucketBegin(d)
		if len(out) == 0 || out[len(out)-1] != b {
			out = append(out, b)
		}
	}
	return out
}

// Clear enumerates the buckets of Buckets(begin, end) and deletes any
// backing file whose bucket start falls within [begin, end), reporting
// progress through onBucket after each visited bucket, whether or not
// its file was deleted.
func (s *Service) Clear(ctx context.Context, catalogID, resource string, samplePeriod, begin, end int64, onBucket func(fileBegin int64)) error {
	for _, fileBegin := range s.Buckets(begin, end) {
		if fileBegin >= begin && fileBegin < end {
			path := s.layout.CacheFilePath(catalogID, resource, samplePeriod, time.Unix(0, fileBegin).UTC())
			lock := s.lockFor(path)
			if err := lock.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("cache: acquire bucket lock for clear: %w", err)
			}
			err := os.Remove(path)
			lock.Release(1)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("cache: clear bucket %s: %w", path, err)
			}
		}
		if onBucket != nil {
			onBucket(fileBegin)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
