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
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DecodeRequestConfig decodes the opaque base64-JSON RequestConfig
// header the HTTP layer forwards. The transport that produces
// this header is out of scope for this repository, but the decode step
// is a pure function any transport can share.
func DecodeRequestConfig(header []byte) (map[string]any, error) {
	if len(header) == 0 {
		return map[string]any{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(string(header))
	if err != nil {
		return nil, fmt.Errorf("pipeline: decode request config base64: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pipeline: decode request config json: %w", err)
	}
	return out, nil
}
