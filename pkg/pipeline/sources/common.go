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

package sources

import (
	"io"
	"time"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/sampleperiod"
)

func parseDataType(v any) binary.DataType {
	name, _ := v.(string)
	switch name {
	case "I8":
		return binary.I8
	case "U8":
		return binary.U8
	case "I16":
		return binary.I16
	case "U16":
		return binary.U16
	case "I32":
		return binary.I32
	case "U32":
		return binary.U32
	case "I64":
		return binary.I64
	case "U64":
		return binary.U64
	case "F32":
		return binary.F32
	default:
		return binary.F64
	}
}

// parsePeriod accepts an integer nanosecond count (however the config
// decoder typed it) or a compact period literal like "10_ms".
func parsePeriod(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		p, err := sampleperiod.Parse(n)
		if err != nil {
			return 0
		}
		return int64(p)
	}
	return 0
}

func parseTime(v any) time.Time {
	s, _ := v.(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// readFull reads exactly len(dst) bytes from r, matching io.ReadFull's
// contract without importing it twice across backend files.
func readFull(r io.Reader, dst []byte) (int, error) {
	return io.ReadFull(r, dst)
}
