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

// Package binary provides typed views over raw byte buffers for the
// primitive types a Nexus representation can materialize as, plus the
// representation-status masking rule shared by every read path.
package binary

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the primitive element type of a representation. Resampled
// and aggregation representations always materialize as F64; Original
// representations may be any of these.
type DataType int

const (
	I8 DataType = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
)

// Size returns the element size in bytes for t.
func (t DataType) Size() int {
	switch t {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	default:
		panic(fmt.Sprintf("binary: unknown data type %d", t))
	}
}

func (t DataType) String() string {
	switch t {
	case I8:
		return "I8"
	case U8:
		return "U8"
	case I16:
		return "I16"
	case U16:
		return "U16"
	case I32:
		return "I32"
	case U32:
		return "U32"
	case I64:
		return "I64"
	case U64:
		return "U64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	default:
		return "Unknown"
	}
}

// Status is the per-sample representation-status code. Only Ok (1) marks
// a sample as valid; every other value (including the zero value) means
// the sample must be treated as absent and widened to NaN.
type Status byte

const (
	StatusNone Status = 0
	StatusOk   Status = 1
)

// Valid reports whether s marks its sample as present.
func (s Status) Valid() bool { return s == StatusOk }

// WidenToF64 converts a raw little-endian buffer of the given element
// type and its parallel per-sample status buffer into a dense []float64,
// applying the status masking rule: status != 1 -> NaN.
//
// raw must hold exactly len(status) elements of t.Size() bytes each, in
// little-endian encoding. WidenToF64 never mutates raw or status.
func WidenToF64(t DataType, raw []byte, status []Status) ([]float64, error) {
	n := len(status)
	if len(raw) != n*t.Size() {
		return nil, fmt.Errorf("binary: WidenToF64: raw has %d bytes, want %d for %d elements of %s", len(raw), n*t.Size(), n, t)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if !status[i].Valid() {
			out[i] = math.NaN()
			continue
		}
		out[i] = readElement(t, raw[i*t.Size():(i+1)*t.Size()])
	}
	return out, nil
}

func readElement(t DataType, b []byte) float64 {
	switch t {
	case I8:
		return float64(int8(b[0]))
	case U8:
		return float64(b[0])
	case I16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case U16:
		return float64(binary.LittleEndian.Uint16(b))
	case I32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case U32:
		return float64(binary.LittleEndian.Uint32(b))
	case I64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case U64:
		return float64(binary.LittleEndian.Uint64(b))
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		panic(fmt.Sprintf("binary: unknown data type %d", t))
	}
}

// RawBits returns the element at index i in raw (of element type t) as
// its raw unsigned integer bit pattern, for use by the bitwise
// aggregation kernels (MinBitwise/MaxBitwise). Floating point types fold
// their IEEE-754 bit pattern, matching the "raw integer bit patterns"
// bitwise aggregation kernels.
func RawBits(t DataType, raw []byte, i int) uint64 {
	b := raw[i*t.Size() : (i+1)*t.Size()]
	switch t {
	case I8, U8:
		return uint64(b[0])
	case I16, U16:
		return uint64(binary.LittleEndian.Uint16(b))
	case I32, U32:
		return uint64(binary.LittleEndian.Uint32(b))
	case F32:
		return uint64(binary.LittleEndian.Uint32(b))
	case I64, U64:
		return binary.LittleEndian.Uint64(b)
	case F64:
		return binary.LittleEndian.Uint64(b)
	default:
		panic(fmt.Sprintf("binary: unknown data type %d", t))
	}
}

// PutF64Slice encodes vs into dst as little-endian float64 rows. dst must
// be at least 8*len(vs) bytes.
func PutF64Slice(dst []byte, vs []float64) {
	for i, v := range vs {
		binary.LittleEndian.PutUint64(dst[i*8:(i+1)*8], math.Float64bits(v))
	}
}

// ReadF64Slice decodes n little-endian float64 values from src.
func ReadF64Slice(src []byte, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8 : (i+1)*8]))
	}
	return out
}
