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

package process

import (
	"encoding/binary"
	"math"
	"testing"

	nbinary "github.com/nexus-data/nexus-core/pkg/binary"
)

func encodeI32(vs []int32) []byte {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func statusFromInts(vs ...int) []nbinary.Status {
	out := make([]nbinary.Status, len(vs))
	for i, v := range vs {
		out[i] = nbinary.Status(v)
	}
	return out
}

// Twelve i32 inputs with one bad status: Sum passes at threshold 0.90
// and fails at 0.99.
func TestAggregationMeanSumScenario(t *testing.T) {
	values := []int32{0, 1, 2, 3, -4, 5, 6, 7, 0, 2, 97, 13}
	status := statusFromInts(1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1)
	raw := encodeI32(values)

	got, err := Aggregate(Sum, nbinary.I32, raw, status, 12, 0.90)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 132 {
		t.Fatalf("Sum @ threshold 0.90 = %v, want [132]", got)
	}

	got, err = Aggregate(Sum, nbinary.I32, raw, status, 12, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !math.IsNaN(got[0]) {
		t.Fatalf("Sum @ threshold 0.99 = %v, want [NaN]", got)
	}
}

func TestAggregationThresholdProperty(t *testing.T) {
	blockSize := 10
	for validCount := 0; validCount <= blockSize; validCount++ {
		values := make([]int32, blockSize)
		statusInts := make([]int, blockSize)
		for i := range values {
			values[i] = int32(i + 1)
			if i < validCount {
				statusInts[i] = 1
			}
		}
		raw := encodeI32(values)
		status := statusFromInts(statusInts...)
		threshold := 0.5

		got, err := Aggregate(Mean, nbinary.I32, raw, status, blockSize, threshold)
		if err != nil {
			t.Fatal(err)
		}
		fraction := float64(validCount) / float64(blockSize)
		if fraction < threshold {
			if !math.IsNaN(got[0]) {
				t.Errorf("validCount=%d fraction=%v < threshold: want NaN, got %v", validCount, fraction, got[0])
			}
			continue
		}
		var sum float64
		for i := 0; i < validCount; i++ {
			sum += float64(values[i])
		}
		want := sum / float64(validCount)
		if got[0] != want {
			t.Errorf("validCount=%d: got %v, want %v", validCount, got[0], want)
		}
	}
}

func TestAggregationMinMaxSum(t *testing.T) {
	values := []int32{5, -3, 10, 2}
	status := statusFromInts(1, 1, 1, 1)
	raw := encodeI32(values)

	min, err := Aggregate(Min, nbinary.I32, raw, status, 4, 0.99)
	if err != nil || min[0] != -3 {
		t.Fatalf("Min = %v, err=%v", min, err)
	}
	max, err := Aggregate(Max, nbinary.I32, raw, status, 4, 0.99)
	if err != nil || max[0] != 10 {
		t.Fatalf("Max = %v, err=%v", max, err)
	}
}

func TestAggregationMeanPolarDeg(t *testing.T) {
	// Average of 350 and 10 degrees should wrap to 0, not 180.
	values := []int32{350, 10}
	status := statusFromInts(1, 1)
	raw := encodeI32(values)

	got, err := Aggregate(MeanPolarDeg, nbinary.I32, raw, status, 2, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	// normalize to [0, 360)
	result := math.Mod(got[0]+360, 360)
	if math.Abs(result) > 1e-9 && math.Abs(result-360) > 1e-9 {
		t.Errorf("mean_polar_deg(350,10) = %v, want ~0 mod 360", result)
	}
}

func TestAggregationBitwise(t *testing.T) {
	values := []int32{0b1100, 0b1010, 0b1110}
	status := statusFromInts(1, 1, 1)
	raw := encodeI32(values)

	and, err := Aggregate(MinBitwise, nbinary.I32, raw, status, 3, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(and[0]) != 0b1000 {
		t.Errorf("min_bitwise = %v, want 0b1000", and)
	}

	or, err := Aggregate(MaxBitwise, nbinary.I32, raw, status, 3, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(or[0]) != 0b1110 {
		t.Errorf("max_bitwise = %v, want 0b1110", or)
	}
}

func TestAggregateRejectsMisalignedBlockSize(t *testing.T) {
	raw := encodeI32([]int32{1, 2, 3})
	status := statusFromInts(1, 1, 1)
	if _, err := Aggregate(Sum, nbinary.I32, raw, status, 2, 0.99); err == nil {
		t.Fatal("expected error: 3 samples is not a multiple of blockSize 2")
	}
}
