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

// Package orchestrator implements the top-level read scheduler:
// chunking the total time range under the process-wide memory
// budget, fanning out one controller read per pipeline group per chunk,
// aggregating progress, and completing every output pipe at the end.
package orchestrator

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-data/nexus-core/pkg/memtrack"
	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// ReadRequest couples a pipeline-level read request with the pipeline
// group it is read through; requests sharing a Group are batched into
// one controller read per chunk. Writers implementing io.Closer are
// closed once the orchestration completes.
type ReadRequest struct {
	Group *pipeline.Controller
	pipeline.ReadRequest
}

// Orchestrator schedules concurrent reads under the global memory
// budget and streams results to the requests' writers.
type Orchestrator struct {
	tracker *memtrack.Tracker
	logger  pipeline.Logger
}

// New builds an Orchestrator over the process-wide memory tracker.
func New(tracker *memtrack.Tracker, logger pipeline.Logger) *Orchestrator {
	if logger == nil {
		logger = pipeline.NopLogger{}
	}
	return &Orchestrator{tracker: tracker, logger: logger}
}

// Read validates, sizes, budgets, and runs the chunk loop.
// samplePeriod is the target period in nanoseconds shared by all
// requests of this invocation.
func (o *Orchestrator) Read(ctx context.Context, begin, end time.Time, samplePeriod int64, requests []ReadRequest, progress Progress) error {
	if progress == nil {
		progress = NopProgress{}
	}
	prog := &monotonic{next: progress}

	if err := validate(begin, end, samplePeriod, requests); err != nil {
		return err
	}
	if len(requests) == 0 {
		prog.Set(1)
		return nil
	}

	bytesPerRow := int64(0)
	largestBase := int64(0)
	for _, r := range requests {
		if r.BaseItem != nil {
			bytesPerRow += 8
			if r.BaseItem.SamplePeriod > largestBase {
				largestBase = r.BaseItem.SamplePeriod
			}
		} else {
			bytesPerRow += int64(r.DataType.Size())
		}
	}
	if largestBase == 0 {
		largestBase = samplePeriod
	}

	totalTicks := end.Sub(begin).Nanoseconds()
	totalRowCount := totalTicks / samplePeriod
	totalByteCount := bytesPerRow * totalRowCount

	token, err := o.tracker.RegisterAllocation(ctx, bytesPerRow, totalByteCount)
	if err != nil {
		return err
	}
	defer token.Release()

	chunkSize := token.Bytes()
	maxPeriodPerRequest := samplePeriod * (chunkSize / bytesPerRow)
	maxPeriodPerRequest = maxPeriodPerRequest / largestBase * largestBase
	if maxPeriodPerRequest == 0 {
		return nexuserr.OutOfMemory("orchestrator: chunk of %d bytes cannot hold one base period of %dns", chunkSize, largestBase)
	}

	groups := groupByPipeline(requests)

	consumed := int64(0)
	for consumed < totalTicks {
		currentPeriod := maxPeriodPerRequest
		if remaining := totalTicks - consumed; remaining < currentPeriod {
			currentPeriod = remaining
		}
		chunkBegin := begin.Add(time.Duration(consumed))
		chunkEnd := chunkBegin.Add(time.Duration(currentPeriod))

		if err := o.readChunk(ctx, chunkBegin, chunkEnd, groups, prog, consumed, currentPeriod, totalTicks); err != nil {
			return err
		}
		consumed += currentPeriod
		prog.Set(float64(consumed) / float64(totalTicks))
	}

	prog.Set(1)
	completePipes(requests)
	return nil
}

// readChunk runs one controller read per pipeline group concurrently.
// A group failure other than out-of-memory is logged and the loop
// continues; out-of-memory aborts the orchestration and cancels
// sibling groups.
func (o *Orchestrator) readChunk(ctx context.Context, chunkBegin, chunkEnd time.Time, groups []pipelineGroup, prog *monotonic, consumed, currentPeriod, totalTicks int64) error {
	g, gctx := errgroup.WithContext(ctx)
	weight := 1.0 / float64(len(groups))

	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			err := grp.ctrl.Read(gctx, chunkBegin, chunkEnd, grp.reqs, func(fraction float64) {
				// Weighted by this group's share of the chunk and the
				// chunk's share of the total.
				chunkFraction := fraction * weight
				prog.Set((float64(consumed) + chunkFraction*float64(currentPeriod)) / float64(totalTicks))
			})
			if err != nil {
				if nexuserr.Is(err, nexuserr.KindOutOfMemory) {
					return err
				}
				o.logger.Errorf("orchestrator: pipeline read failed for chunk [%s, %s): %v", chunkBegin, chunkEnd, err)
			}
			return nil
		})
	}
	return g.Wait()
}

type pipelineGroup struct {
	ctrl *pipeline.Controller
	reqs []pipeline.ReadRequest
}

func groupByPipeline(requests []ReadRequest) []pipelineGroup {
	var groups []pipelineGroup
	index := map[*pipeline.Controller]int{}
	for _, r := range requests {
		i, ok := index[r.Group]
		if !ok {
			i = len(groups)
			index[r.Group] = i
			groups = append(groups, pipelineGroup{ctrl: r.Group})
		}
		groups[i].reqs = append(groups[i].reqs, r.ReadRequest)
	}
	return groups
}

func completePipes(requests []ReadRequest) {
	for _, r := range requests {
		if c, ok := r.Writer.(io.Closer); ok {
			c.Close()
		}
	}
}

// validate enforces the request preconditions: begin < end, both multiples of
// samplePeriod, and each processed request's base relation holds
// (target multiple of base for aggregation, base multiple of target
// for resampling).
func validate(begin, end time.Time, samplePeriod int64, requests []ReadRequest) error {
	if samplePeriod <= 0 {
		return nexuserr.Validation("orchestrator: sample period must be positive")
	}
	if !begin.Before(end) {
		return nexuserr.Validation("orchestrator: begin %s is not before end %s", begin, end)
	}
	if begin.UnixNano()%samplePeriod != 0 || end.UnixNano()%samplePeriod != 0 {
		return nexuserr.Validation("orchestrator: begin and end must be multiples of the sample period")
	}
	for _, r := range requests {
		if r.SamplePeriod != samplePeriod {
			return nexuserr.Validation("orchestrator: request %s/%s sample period %d differs from invocation period %d", r.CatalogID, r.Resource, r.SamplePeriod, samplePeriod)
		}
		b := r.BaseItem
		if b == nil {
			continue
		}
		if b.SamplePeriod <= 0 {
			return nexuserr.Validation("orchestrator: request %s/%s has non-positive base period", r.CatalogID, r.Resource)
		}
		switch {
		case samplePeriod > b.SamplePeriod:
			if samplePeriod%b.SamplePeriod != 0 {
				return nexuserr.Validation("orchestrator: aggregation target %dns is not a multiple of base %dns", samplePeriod, b.SamplePeriod)
			}
		case samplePeriod < b.SamplePeriod:
			if b.SamplePeriod%samplePeriod != 0 {
				return nexuserr.Validation("orchestrator: resample base %dns is not a multiple of target %dns", b.SamplePeriod, samplePeriod)
			}
		default:
			return nexuserr.Validation("orchestrator: processed request %s/%s has equal base and target periods", r.CatalogID, r.Resource)
		}
	}
	return nil
}
