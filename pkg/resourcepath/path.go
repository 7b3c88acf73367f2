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

// Package resourcepath parses the user-facing resource path grammar:
//
//	/catalog/resource/<samplePeriod>[_<kind>[_unit]][#base=<baseSamplePeriod>]
package resourcepath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/sampleperiod"
)

// Kind is the representation kind encoded in a resource path's
// representation segment.
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

var kindNames = map[string]Kind{
	"mean":           Mean,
	"min":            Min,
	"max":            Max,
	"sum":            Sum,
	"mean_polar_deg": MeanPolarDeg,
	"min_bitwise":    MinBitwise,
	"max_bitwise":    MaxBitwise,
}

var kindLiterals = map[Kind]string{
	Mean:         "mean",
	Min:          "min",
	Max:          "max",
	Sum:          "sum",
	MeanPolarDeg: "mean_polar_deg",
	MinBitwise:   "min_bitwise",
	MaxBitwise:   "max_bitwise",
}

func (k Kind) String() string {
	if k == Original {
		return "Original"
	}
	if k == Resampled {
		return "Resampled"
	}
	if lit, ok := kindLiterals[k]; ok {
		return lit
	}
	return "Unknown"
}

// IsAggregation reports whether k is one of the statistical aggregation
// kinds (as opposed to Original or Resampled).
func (k Kind) IsAggregation() bool {
	switch k {
	case Min, Max, Mean, Sum, MeanPolarDeg, MinBitwise, MaxBitwise:
		return true
	default:
		return false
	}
}

// Path is a parsed resource path.
type Path struct {
	// CatalogID is the slash-delimited absolute catalog ID, e.g. "/A/B".
	CatalogID string
	// Resource is the resource name within the catalog.
	Resource string
	// SamplePeriod is the requested representation's sample period.
	SamplePeriod sampleperiod.Period
	// Kind is Original unless a _<kind> segment is present.
	Kind Kind
	// Variant is the optional trailing "_unit" qualifier on the
	// representation segment (e.g. "/resource/10_min_mean_polar_deg" has
	// no variant, but some deployments suffix a physical unit hint).
	Variant string
	// BaseSamplePeriod is set iff the path carries a "#base=" fragment,
	// which is required for every non-Original kind.
	BaseSamplePeriod sampleperiod.Period
	HasBase          bool
}

var pathGrammar = regexp.MustCompile(`^/(.+)/([^/#]+)/([^/#]+)(?:#base=([^#]+))?$`)

// Parse parses a resource path. Parsing is total on well-formed inputs;
// malformed paths return a *nexuserr.Error of KindValidation.
func Parse(s string) (Path, error) {
	m := pathGrammar.FindStringSubmatch(s)
	if m == nil {
		return Path{}, nexuserr.Validation("resourcepath: malformed path %q", s)
	}
	catalogID := "/" + m[1]
	resource := m[2]
	repr := m[3]
	baseLit := m[4]

	segs := strings.Split(repr, "_")
	// The sample period itself is "{n}_{unit}", i.e. the first two
	// underscore-delimited segments; anything after is kind[_variant].
	if len(segs) < 2 {
		return Path{}, nexuserr.Validation("resourcepath: malformed representation segment %q", repr)
	}
	periodLit := segs[0] + "_" + segs[1]
	sp, err := sampleperiod.Parse(periodLit)
	if err != nil {
		return Path{}, nexuserr.Validation("resourcepath: %v", err)
	}

	p := Path{CatalogID: catalogID, Resource: resource, SamplePeriod: sp, Kind: Original}

	rest := segs[2:]
	if len(rest) > 0 {
		// mean_polar_deg, min_bitwise, max_bitwise are themselves
		// multi-segment kind literals; try progressively shorter
		// prefixes so a trailing unit variant can still be recognized.
		matched := false
		for take := len(rest); take >= 1; take-- {
			candidate := strings.Join(rest[:take], "_")
			if candidate == "resampled" {
				p.Kind = Resampled
				p.Variant = strings.Join(rest[take:], "_")
				matched = true
				break
			}
			if k, ok := kindNames[candidate]; ok {
				p.Kind = k
				p.Variant = strings.Join(rest[take:], "_")
				matched = true
				break
			}
		}
		if !matched {
			return Path{}, nexuserr.Validation("resourcepath: unknown representation kind in %q", repr)
		}
	}

	if baseLit != "" {
		base, err := sampleperiod.Parse(baseLit)
		if err != nil {
			return Path{}, nexuserr.Validation("resourcepath: malformed base sample period %q: %v", baseLit, err)
		}
		p.BaseSamplePeriod = base
		p.HasBase = true
	}

	if p.Kind != Original && !p.HasBase {
		return Path{}, nexuserr.Validation("resourcepath: processed representation %q requires #base=", repr)
	}
	if p.Kind == Original && p.HasBase {
		return Path{}, nexuserr.Validation("resourcepath: Original representation must not carry #base=")
	}
	if p.HasBase {
		if p.Kind == Resampled {
			if !p.BaseSamplePeriod.IsMultipleOf(p.SamplePeriod) {
				return Path{}, nexuserr.Validation("resourcepath: resample target %s must evenly divide base %s", p.SamplePeriod, p.BaseSamplePeriod)
			}
		} else if p.Kind.IsAggregation() {
			if !p.SamplePeriod.IsMultipleOf(p.BaseSamplePeriod) {
				return Path{}, nexuserr.Validation("resourcepath: aggregation target %s must be an integer multiple of base %s", p.SamplePeriod, p.BaseSamplePeriod)
			}
		}
	}

	return p, nil
}

// String renders p back into the compact resource path grammar.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.CatalogID)
	b.WriteByte('/')
	b.WriteString(p.Resource)
	b.WriteByte('/')
	b.WriteString(p.SamplePeriod.String())
	if p.Kind == Resampled {
		b.WriteString("_resampled")
	} else if p.Kind != Original {
		b.WriteByte('_')
		b.WriteString(kindLiterals[p.Kind])
	}
	if p.Variant != "" {
		b.WriteByte('_')
		b.WriteString(p.Variant)
	}
	if p.HasBase {
		fmt.Fprintf(&b, "#base=%s", p.BaseSamplePeriod)
	}
	return b.String()
}
