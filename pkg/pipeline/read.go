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
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/process"
)

// Read partitions requests into original (no BaseItem) and processed
// (BaseItem set) classes and drives each, reporting
// monotonically non-decreasing progress across the whole call.
func (c *Controller) Read(ctx context.Context, begin, end time.Time, requests []ReadRequest, progress ProgressFunc) error {
	if progress == nil {
		progress = func(float64) {}
	}
	if len(requests) == 0 {
		progress(1)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var done atomic.Int32
	total := int32(len(requests))

	// Completion reports race between goroutines; holding a maximum
	// under a lock keeps the reported fractions monotonic.
	var mu sync.Mutex
	var best float64
	report := func(f float64) {
		mu.Lock()
		defer mu.Unlock()
		if f > best {
			best = f
			progress(f)
		}
	}

	for i := range requests {
		req := requests[i]
		g.Go(func() error {
			var err error
			if req.BaseItem == nil {
				err = c.readOriginal(gctx, begin, end, req)
			} else if req.BaseItem.SamplePeriod < req.SamplePeriod {
				err = c.readAggregated(gctx, begin, end, req)
			} else {
				err = c.readResampled(gctx, begin, end, req)
			}
			if err != nil {
				var ne *nexuserr.Error
				if errAs(err, &ne) && ne.Kind == nexuserr.KindOutOfMemory {
					return err
				}
				// A failure other than out-of-memory does not abort
				// sibling requests or sibling pipelines: this request's
				// slice is filled with NaN instead. The error itself is
				// dropped here; it is not logged.
				if werr := writeNaNFill(req, begin, end); werr != nil {
					return werr
				}
			}
			report(float64(done.Add(1)) / float64(total))
			return nil
		})
	}
	return g.Wait()
}

// writeNaNFill writes a NaN-filled buffer of the right length for req's
// time range, used when a source read failed transiently and the caller
// must still advance req.Writer so sibling chunks keep strictly
// increasing time order.
func writeNaNFill(req ReadRequest, begin, end time.Time) error {
	n := int(end.Sub(begin).Nanoseconds() / req.SamplePeriod)
	fill := make([]float64, n)
	for i := range fill {
		fill[i] = math.NaN()
	}
	out := make([]byte, n*8)
	binary.PutF64Slice(out, fill)
	_, err := req.Writer.Write(out)
	return err
}

func errAs(err error, target **nexuserr.Error) bool {
	for err != nil {
		if e, ok := err.(*nexuserr.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// readOriginal routes to the source at the resource's pipeline position
// and widens its raw bytes + status to F64, applying the status masking
// rule.
func (c *Controller) readOriginal(ctx context.Context, begin, end time.Time, req ReadRequest) error {
	src, err := c.sourceAt(req)
	if err != nil {
		return err
	}

	n := int((end.Sub(begin)).Nanoseconds() / req.SamplePeriod)
	raw := make([]byte, n*req.DataType.Size())
	status := make([]binary.Status, n)
	if err := src.Read(ctx, req.CatalogID+"/"+req.Resource, req.SamplePeriod, req.DataType, begin, end, raw, status); err != nil {
		return nexuserr.Transient(err, "pipeline: original read failed for %s/%s", req.CatalogID, req.Resource)
	}

	widened, err := binary.WidenToF64(req.DataType, raw, status)
	if err != nil {
		return nexuserr.Fatal("pipeline: widen failed for %s/%s: %v", req.CatalogID, req.Resource, err)
	}
	out := make([]byte, len(widened)*8)
	binary.PutF64Slice(out, widened)
	_, err = req.Writer.Write(out)
	return err
}

// readAggregated implements the aggregation path: consult
// the cache for a prefilled buffer and its uncached sub-intervals, read
// the base rate for each uncached interval, aggregate, then write the
// new target samples back into the cache restricted to those intervals.
func (c *Controller) readAggregated(ctx context.Context, begin, end time.Time, req ReadRequest) error {
	base := req.BaseItem
	blockSize := int(req.SamplePeriod / base.SamplePeriod)
	beginTicks := begin.UnixNano()
	endTicks := end.UnixNano()
	n := int((endTicks - beginTicks) / req.SamplePeriod)

	target := make([]float64, n)
	var uncached []Interval
	cacheOn := c.cache != nil && c.cache.Enabled(req.CatalogID)
	if cacheOn {
		var err error
		uncached, err = c.cache.Read(ctx, req.CatalogID, req.Resource, req.SamplePeriod, beginTicks, endTicks, target)
		if err != nil {
			return err
		}
	} else {
		for i := range target {
			target[i] = math.NaN()
		}
		uncached = []Interval{{Begin: beginTicks, End: endTicks}}
	}

	src, err := c.sourceAt(req)
	if err != nil {
		return err
	}
	for _, iv := range uncached {
		blocks := int((iv.End - iv.Begin) / req.SamplePeriod)
		baseCount := blocks * blockSize
		baseRaw := make([]byte, baseCount*base.DataType.Size())
		baseStatus := make([]binary.Status, baseCount)
		baseBegin := time.Unix(0, iv.Begin)
		baseEnd := time.Unix(0, iv.Begin+int64(baseCount)*base.SamplePeriod)
		if err := src.Read(ctx, req.CatalogID+"/"+req.Resource, base.SamplePeriod, base.DataType, baseBegin, baseEnd, baseRaw, baseStatus); err != nil {
			return nexuserr.Transient(err, "pipeline: aggregation base read failed for %s/%s", req.CatalogID, req.Resource)
		}

		agg, err := process.Aggregate(toProcessKind(req.Kind), base.DataType, baseRaw, baseStatus, blockSize, c.aggThreshold)
		if err != nil {
			return nexuserr.Fatal("pipeline: aggregate failed for %s/%s: %v", req.CatalogID, req.Resource, err)
		}
		dstOff := (iv.Begin - beginTicks) / req.SamplePeriod
		copy(target[dstOff:dstOff+int64(len(agg))], agg)

		if cacheOn {
			if err := c.cache.Write(ctx, req.CatalogID, req.Resource, req.SamplePeriod, iv.Begin, agg); err != nil {
				return err
			}
		}
	}

	out := make([]byte, len(target)*8)
	binary.PutF64Slice(out, target)
	_, err = req.Writer.Write(out)
	return err
}

// readResampled implements the resampling path: read one
// contiguous base-rate block covering the rounded request range, then
// stretch-hold into the target buffer.
func (c *Controller) readResampled(ctx context.Context, begin, end time.Time, req ReadRequest) error {
	base := req.BaseItem
	beginTicks := begin.UnixNano()
	endTicks := end.UnixNano()

	roundedBegin := floorDiv(beginTicks, base.SamplePeriod) * base.SamplePeriod
	roundedEnd := ceilDiv(endTicks, base.SamplePeriod) * base.SamplePeriod
	baseCount := int((roundedEnd - roundedBegin) / base.SamplePeriod)

	baseRaw := make([]byte, baseCount*base.DataType.Size())
	baseStatus := make([]binary.Status, baseCount)
	src, err := c.sourceAt(req)
	if err != nil {
		return err
	}
	if err := src.Read(ctx, req.CatalogID+"/"+req.Resource, base.SamplePeriod, base.DataType, time.Unix(0, roundedBegin), time.Unix(0, roundedEnd), baseRaw, baseStatus); err != nil {
		return nexuserr.Transient(err, "pipeline: resample base read failed for %s/%s", req.CatalogID, req.Resource)
	}

	blockSize := int(base.SamplePeriod / req.SamplePeriod)
	offset := int((beginTicks - roundedBegin) / req.SamplePeriod)
	n := int((endTicks - beginTicks) / req.SamplePeriod)
	target := make([]float64, n)
	if err := process.Resample(base.DataType, baseRaw, baseStatus, target, blockSize, offset); err != nil {
		return nexuserr.Fatal("pipeline: resample failed for %s/%s: %v", req.CatalogID, req.Resource, err)
	}

	out := make([]byte, len(target)*8)
	binary.PutF64Slice(out, target)
	_, err = req.Writer.Write(out)
	return err
}

// sourceAt routes a request to the source at its pipeline position.
func (c *Controller) sourceAt(req ReadRequest) (DataSource, error) {
	if req.PipelinePosition < 0 || req.PipelinePosition >= len(c.sources) {
		return nil, nexuserr.Fatal("pipeline: resource %s/%s has out-of-range pipeline position %d", req.CatalogID, req.Resource, req.PipelinePosition)
	}
	return c.sources[req.PipelinePosition], nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}

func toProcessKind(k Kind) process.AggregationKind {
	switch k {
	case Min:
		return process.Min
	case Max:
		return process.Max
	case Mean:
		return process.Mean
	case Sum:
		return process.Sum
	case MeanPolarDeg:
		return process.MeanPolarDeg
	case MinBitwise:
		return process.MinBitwise
	case MaxBitwise:
		return process.MaxBitwise
	default:
		return process.Mean
	}
}
