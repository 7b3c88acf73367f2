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

// Package sampleperiod parses and formats the compact sample-period
// grammar used throughout resource paths: "{n}_{unit}" with
// unit in {ns, us, ms, s, min, h, d}.
package sampleperiod

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
)

// Period is a sample period expressed in nanoseconds, the finest grain
// the grammar supports.
type Period int64

var grammar = regexp.MustCompile(`^(\d+)_(ns|us|ms|s|min|h|d)$`)

var unitNanos = map[string]int64{
	"ns":  1,
	"us":  int64(time.Microsecond),
	"ms":  int64(time.Millisecond),
	"s":   int64(time.Second),
	"min": int64(time.Minute),
	"h":   int64(time.Hour),
	"d":   int64(24 * time.Hour),
}

// unit preference order used when formatting back to the compact grammar,
// largest first so "1_s" is preferred over "1000_ms".
var unitsByMagnitude = []string{"d", "h", "min", "s", "ms", "us", "ns"}

// Parse parses a compact sample-period literal such as "10_ms" or "1_min".
// Parsing is total on well-formed inputs; malformed inputs return a
// *nexuserr.Error of KindValidation.
func Parse(s string) (Period, error) {
	m := grammar.FindStringSubmatch(s)
	if m == nil {
		return 0, nexuserr.Validation("sampleperiod: malformed literal %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, nexuserr.Validation("sampleperiod: magnitude out of range in %q", s)
	}
	if n <= 0 {
		return 0, nexuserr.Validation("sampleperiod: magnitude must be positive in %q", s)
	}
	unitNs, ok := unitNanos[m[2]]
	if !ok {
		return 0, nexuserr.Validation("sampleperiod: unknown unit %q", m[2])
	}
	return Period(n * unitNs), nil
}

// String formats p back into the compact grammar, choosing the coarsest
// unit that represents p exactly.
func (p Period) String() string {
	if p <= 0 {
		return fmt.Sprintf("%d_ns", int64(p))
	}
	for _, u := range unitsByMagnitude {
		step := unitNanos[u]
		if int64(p)%step == 0 {
			return fmt.Sprintf("%d_%s", int64(p)/step, u)
		}
	}
	return fmt.Sprintf("%d_ns", int64(p))
}

// Duration converts p to a time.Duration.
func (p Period) Duration() time.Duration { return time.Duration(p) }

// IsMultipleOf reports whether p is an integer multiple of base (p >= base
// and p % base == 0), the relation required between a processed
// representation's sample period and its base item's sample period.
func (p Period) IsMultipleOf(base Period) bool {
	if base <= 0 {
		return false
	}
	return p >= base && int64(p)%int64(base) == 0
}

// Divides reports whether base divides p evenly, i.e. p.IsMultipleOf(base)
// from base's point of view. Provided for readability at call sites that
// read more naturally as "base divides target".
func Divides(base, p Period) bool { return p.IsMultipleOf(base) }
