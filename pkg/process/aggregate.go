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
	"fmt"
	"math"

	"github.com/nexus-data/nexus-core/pkg/binary"
)

// Aggregate folds raw into blocks of blockSize samples and applies kind to
// each block, producing one F64 output per block. A block's output is
// NaN whenever the fraction of samples with status == Ok falls below
// threshold; otherwise kind is applied to the valid subset only.
//
// len(status) must be an exact multiple of blockSize.
func Aggregate(kind AggregationKind, dt binary.DataType, raw []byte, status []binary.Status, blockSize int, threshold float64) ([]float64, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("process: Aggregate: blockSize must be positive, got %d", blockSize)
	}
	if len(status)%blockSize != 0 {
		return nil, fmt.Errorf("process: Aggregate: %d samples is not a multiple of blockSize %d", len(status), blockSize)
	}
	if len(raw) != len(status)*dt.Size() {
		return nil, fmt.Errorf("process: Aggregate: raw has %d bytes, want %d", len(raw), len(status)*dt.Size())
	}

	numBlocks := len(status) / blockSize
	out := make([]float64, numBlocks)

	for b := 0; b < numBlocks; b++ {
		lo := b * blockSize
		hi := lo + blockSize
		valid := 0
		for i := lo; i < hi; i++ {
			if status[i].Valid() {
				valid++
			}
		}
		if float64(valid)/float64(blockSize) < threshold {
			out[b] = math.NaN()
			continue
		}
		out[b] = applyKernel(kind, dt, raw, status, lo, hi)
	}
	return out, nil
}

func applyKernel(kind AggregationKind, dt binary.DataType, raw []byte, status []binary.Status, lo, hi int) float64 {
	switch kind {
	case Min, Max, Sum, Mean:
		return applyNumericKernel(kind, dt, raw, status, lo, hi)
	case MeanPolarDeg:
		return applyMeanPolarDeg(dt, raw, status, lo, hi)
	case MinBitwise, MaxBitwise:
		return applyBitwiseKernel(kind, dt, raw, status, lo, hi)
	default:
		panic(fmt.Sprintf("process: unknown aggregation kind %v", kind))
	}
}

func applyNumericKernel(kind AggregationKind, dt binary.DataType, raw []byte, status []binary.Status, lo, hi int) float64 {
	var (
		sum     float64
		count   int
		min     = math.Inf(1)
		max     = math.Inf(-1)
		started bool
	)
	for i := lo; i < hi; i++ {
		if !status[i].Valid() {
			continue
		}
		v := readNumeric(dt, raw, i)
		sum += v
		count++
		if !started || v < min {
			min = v
		}
		if !started || v > max {
			max = v
		}
		started = true
	}
	switch kind {
	case Min:
		return min
	case Max:
		return max
	case Sum:
		return sum
	case Mean:
		return sum / float64(count)
	default:
		panic("process: unreachable")
	}
}

func applyMeanPolarDeg(dt binary.DataType, raw []byte, status []binary.Status, lo, hi int) float64 {
	var sumSin, sumCos float64
	for i := lo; i < hi; i++ {
		if !status[i].Valid() {
			continue
		}
		deg := readNumeric(dt, raw, i)
		rad := deg * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	return math.Atan2(sumSin, sumCos) * 180 / math.Pi
}

func applyBitwiseKernel(kind AggregationKind, dt binary.DataType, raw []byte, status []binary.Status, lo, hi int) float64 {
	var acc uint64
	started := false
	for i := lo; i < hi; i++ {
		if !status[i].Valid() {
			continue
		}
		bits := binary.RawBits(dt, raw, i)
		if !started {
			acc = bits
			started = true
			continue
		}
		if kind == MinBitwise {
			acc &= bits
		} else {
			acc |= bits
		}
	}
	return float64(acc)
}

func readNumeric(dt binary.DataType, raw []byte, i int) float64 {
	v, err := binary.WidenToF64(dt, raw[i*dt.Size():(i+1)*dt.Size()], []binary.Status{binary.StatusOk})
	if err != nil {
		panic(err) // caller has already validated buffer lengths.
	}
	return v[0]
}
