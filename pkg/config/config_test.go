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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.TotalBufferMemoryConsumption != DefaultTotalBufferMemoryConsumption {
		t.Fatalf("TotalBufferMemoryConsumption = %d, want default %d", s.TotalBufferMemoryConsumption, DefaultTotalBufferMemoryConsumption)
	}
	if s.AggregationNaNThreshold != 0.99 {
		t.Fatalf("AggregationNaNThreshold = %v, want 0.99", s.AggregationNaNThreshold)
	}
}

func TestLoadFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.json")
	body := `{"paths":{"cache":"/data/cache","catalogs":"/data/catalogs"},"totalBufferMemoryConsumption":1048576}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Paths.Cache != "/data/cache" {
		t.Fatalf("Paths.Cache = %q, want /data/cache", s.Paths.Cache)
	}
	if s.TotalBufferMemoryConsumption != 1048576 {
		t.Fatalf("TotalBufferMemoryConsumption = %d, want 1048576", s.TotalBufferMemoryConsumption)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("NEXUS_TOTALBUFFERMEMORYCONSUMPTION", "777")
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.TotalBufferMemoryConsumption != 777 {
		t.Fatalf("TotalBufferMemoryConsumption = %d, want 777 from environment", s.TotalBufferMemoryConsumption)
	}
}
