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

// Resample stretch-holds each base sample blockSize times, producing
// status-0 inputs as NaN throughout their replica group, then discards
// the first offset outputs of that replicated stream and fills
// targetBuffer with however many samples follow.
//
// len(targetBuffer) + offset must not exceed len(status) * blockSize.
func Resample(dt binary.DataType, baseRaw []byte, status []binary.Status, targetBuffer []float64, blockSize, offset int) error {
	if blockSize <= 0 {
		return fmt.Errorf("process: Resample: blockSize must be positive, got %d", blockSize)
	}
	if offset < 0 {
		return fmt.Errorf("process: Resample: offset must be >= 0, got %d", offset)
	}
	n := len(status)
	if len(baseRaw) != n*dt.Size() {
		return fmt.Errorf("process: Resample: baseRaw has %d bytes, want %d", len(baseRaw), n*dt.Size())
	}
	total := n * blockSize
	if offset+len(targetBuffer) > total {
		return fmt.Errorf("process: Resample: offset %d + target length %d exceeds replicated stream length %d", offset, len(targetBuffer), total)
	}

	for out := range targetBuffer {
		replicatedIndex := offset + out
		baseIndex := replicatedIndex / blockSize
		if !status[baseIndex].Valid() {
			targetBuffer[out] = math.NaN()
			continue
		}
		targetBuffer[out] = readNumeric(dt, baseRaw, baseIndex)
	}
	return nil
}
