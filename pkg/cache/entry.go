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

// Package cache implements the file-backed, interval-indexed cache entry
// and service: one file per (catalog, resource,
// samplePeriod, fileBucket) holding a dense F64 data region followed by
// a trailing list of the sub-intervals that are currently populated.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

const int64Size = 8
const maxIntervals = 255

// Interval is a half-open tick range [Begin, End), where ticks are
// nanoseconds since the Unix epoch, sample-period aligned.
type Interval struct {
	Begin int64
	End   int64
}

// Entry is the file-backed representation of one cache bucket: a dense
// F64 array of length filePeriod/samplePeriod, plus the trailing
// interval index. An Entry is not safe for
// concurrent use; the Service wraps each open Entry in a per-bucket
// lock.
type Entry struct {
	file *os.File

	fileBegin    int64
	filePeriod   int64
	samplePeriod int64

	rows      int64 // filePeriod / samplePeriod
	dataLen   int64 // rows * 8 bytes
	intervals []Interval
}

// Open opens (creating if necessary) the cache entry file at path for
// the bucket described by (fileBegin, filePeriod, samplePeriod). A
// freshly created file is grown and its data region filled with NaN, as
// required by the dense-data-NaN-where-absent file format.
func Open(path string, fileBegin, filePeriod, samplePeriod int64) (*Entry, error) {
	if samplePeriod <= 0 || filePeriod <= 0 || filePeriod%samplePeriod != 0 {
		return nil, fmt.Errorf("cache: filePeriod %d must be a positive multiple of samplePeriod %d", filePeriod, samplePeriod)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	rows := filePeriod / samplePeriod
	e := &Entry{
		file:         f,
		fileBegin:    fileBegin,
		filePeriod:   filePeriod,
		samplePeriod: samplePeriod,
		rows:         rows,
		dataLen:      rows * int64Size,
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cache: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := e.initializeEmpty(); err != nil {
			f.Close()
			return nil, err
		}
		return e, nil
	}
	if err := e.loadIntervals(); err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the entry's file handle.
func (e *Entry) Close() error { return e.file.Close() }

func (e *Entry) initializeEmpty() error {
	nanRow := make([]byte, e.dataLen)
	nanBits := math.Float64bits(math.NaN())
	for i := int64(0); i < e.rows; i++ {
		binary.LittleEndian.PutUint64(nanRow[i*int64Size:(i+1)*int64Size], nanBits)
	}
	if _, err := e.file.WriteAt(nanRow, 0); err != nil {
		return fmt.Errorf("cache: initialize data region: %w", err)
	}
	// Grow to reserve one interval's worth of trailer space even though
	// A zero-size file grows to an empty index with N = 0.
	if err := e.file.Truncate(e.dataLen + 1 + 2*int64Size); err != nil {
		return fmt.Errorf("cache: initialize trailer: %w", err)
	}
	if _, err := e.file.WriteAt([]byte{0}, e.dataLen); err != nil {
		return fmt.Errorf("cache: initialize interval count: %w", err)
	}
	e.intervals = nil
	return nil
}

func (e *Entry) loadIntervals() error {
	var nBuf [1]byte
	if _, err := e.file.ReadAt(nBuf[:], e.dataLen); err != nil {
		return fmt.Errorf("cache: read interval count: %w", err)
	}
	n := int(nBuf[0])
	if n == 0 {
		e.intervals = nil
		return nil
	}
	buf := make([]byte, n*2*int64Size)
	if _, err := e.file.ReadAt(buf, e.dataLen+1); err != nil {
		return fmt.Errorf("cache: read interval list: %w", err)
	}
	intervals := make([]Interval, n)
	for i := 0; i < n; i++ {
		b := buf[i*2*int64Size:]
		intervals[i] = Interval{
			Begin: int64(binary.LittleEndian.Uint64(b[0:8])),
			End:   int64(binary.LittleEndian.Uint64(b[8:16])),
		}
	}
	e.intervals = intervals
	return nil
}

func (e *Entry) rowOffset(tick int64) int64 {
	return (tick - e.fileBegin) / e.samplePeriod
}

// Read walks the interval index over [begin, end) (absolute ticks inside
// the bucket), copying cached F64 samples into target and returning the
// disjoint, non-empty sub-windows of [begin, end) that are not yet
// cached, in ascending order.
func (e *Entry) Read(begin, end int64, target []float64) ([]Interval, error) {
	n := (end - begin) / e.samplePeriod
	if n != int64(len(target)) {
		return nil, fmt.Errorf("cache: Read: target has %d samples, want %d", len(target), n)
	}

	var uncached []Interval
	cursor := begin
	appendUncached := func(lo, hi int64) {
		if lo >= hi {
			return
		}
		if len(uncached) > 0 && uncached[len(uncached)-1].End == lo {
			uncached[len(uncached)-1].End = hi
			return
		}
		uncached = append(uncached, Interval{Begin: lo, End: hi})
	}

	for _, iv := range e.intervals {
		if iv.End <= cursor || iv.Begin >= end {
			continue
		}
		lo, hi := iv.Begin, iv.End
		if lo < cursor {
			lo = cursor
		}
		if hi > end {
			hi = end
		}
		if lo > cursor {
			appendUncached(cursor, lo)
		}
		srcOff := e.rowOffset(lo)
		count := (hi - lo) / e.samplePeriod
		row := make([]byte, count*int64Size)
		if _, err := e.file.ReadAt(row, srcOff*int64Size); err != nil {
			return nil, fmt.Errorf("cache: read data region: %w", err)
		}
		dstOff := (lo - begin) / e.samplePeriod
		for i := int64(0); i < count; i++ {
			target[dstOff+i] = math.Float64frombits(binary.LittleEndian.Uint64(row[i*int64Size : (i+1)*int64Size]))
		}
		cursor = hi
	}
	if cursor < end {
		appendUncached(cursor, end)
	}
	return uncached, nil
}

// Write stores values starting at absolute tick begin (data row
// (begin-fileBegin)/samplePeriod of the bucket), then
// inserts [begin, begin+len(values)*samplePeriod) into the interval
// index, sorting by begin (end-tiebreak) and coalescing. It
// fails without mutating anything if the coalesced interval count would
// exceed 255.
func (e *Entry) Write(begin int64, values []float64) error {
	if len(values) == 0 {
		return nil
	}
	end := begin + int64(len(values))*e.samplePeriod
	if begin < e.fileBegin || end > e.fileBegin+e.filePeriod {
		return fmt.Errorf("cache: Write: [%d,%d) is outside bucket [%d,%d)", begin, end, e.fileBegin, e.fileBegin+e.filePeriod)
	}

	merged := coalesce(append(append([]Interval(nil), e.intervals...), Interval{Begin: begin, End: end}))
	if len(merged) > maxIntervals {
		return fmt.Errorf("cache: Write: coalesced interval count %d exceeds %d: %w", len(merged), maxIntervals, errTooManyIntervals)
	}

	row := make([]byte, len(values)*int64Size)
	for i, v := range values {
		binary.LittleEndian.PutUint64(row[i*int64Size:(i+1)*int64Size], math.Float64bits(v))
	}
	off := e.rowOffset(begin)
	if _, err := e.file.WriteAt(row, off*int64Size); err != nil {
		return fmt.Errorf("cache: write data region: %w", err)
	}
	if err := e.writeIntervals(merged); err != nil {
		return err
	}
	e.intervals = merged
	return nil
}

func (e *Entry) writeIntervals(intervals []Interval) error {
	buf := make([]byte, 1+len(intervals)*2*int64Size)
	buf[0] = byte(len(intervals))
	for i, iv := range intervals {
		b := buf[1+i*2*int64Size:]
		binary.LittleEndian.PutUint64(b[0:8], uint64(iv.Begin))
		binary.LittleEndian.PutUint64(b[8:16], uint64(iv.End))
	}
	if err := e.file.Truncate(e.dataLen + int64(len(buf))); err != nil {
		return fmt.Errorf("cache: truncate trailer: %w", err)
	}
	if _, err := e.file.WriteAt(buf, e.dataLen); err != nil {
		return fmt.Errorf("cache: write trailer: %w", err)
	}
	return nil
}

// coalesce sorts intervals by (Begin, End) and merges adjacent or
// overlapping ones. It does not mutate its input.
func coalesce(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Begin != sorted[j].Begin {
			return sorted[i].Begin < sorted[j].Begin
		}
		return sorted[i].End < sorted[j].End
	})
	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Begin <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Intervals returns a copy of the entry's current interval index, sorted
// and coalesced: sorted, disjoint, non-adjacent.
func (e *Entry) Intervals() []Interval {
	return append([]Interval(nil), e.intervals...)
}

var errTooManyIntervals = errors.New("cache: interval count would exceed 255")

// IsTooManyIntervals reports whether err was caused by a write that
// would have exceeded the 255-interval cap.
func IsTooManyIntervals(err error) bool {
	return errors.Is(err, errTooManyIntervals)
}
