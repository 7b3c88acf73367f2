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

func writePipelines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPipelines(t *testing.T) {
	path := writePipelines(t, `
users:
  - username: admin
    isAdmin: true
    claims:
      role: [Administrator]
    pipelines:
      - releasePattern: "^v"
        sources:
          - type: s3
            resourceLocator: "minio.example.com:9000"
            configuration:
              bucket: timeseries
              catalogId: /A/B
          - type: aws
            configuration:
              bucket: archive
  - username: bob
    pipelines:
      - sources:
          - type: s3
            configuration:
              bucket: bob-data
`)

	users, err := LoadPipelines(path)
	if err != nil {
		t.Fatalf("LoadPipelines: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	admin := users[0]
	if !admin.IsAdmin || admin.Username != "admin" {
		t.Errorf("admin user parsed as %+v", admin)
	}
	if len(admin.Pipelines) != 1 || len(admin.Pipelines[0].Sources) != 2 {
		t.Fatalf("admin pipelines parsed as %+v", admin.Pipelines)
	}
	// Pipeline position is list order.
	if admin.Pipelines[0].Sources[0].Type != "s3" || admin.Pipelines[0].Sources[1].Type != "aws" {
		t.Error("source order not preserved")
	}
	if admin.Pipelines[0].ReleasePattern != "^v" {
		t.Errorf("release pattern = %q", admin.Pipelines[0].ReleasePattern)
	}
	if got := admin.Pipelines[0].Sources[0].Configuration["bucket"]; got != "timeseries" {
		t.Errorf("configuration bucket = %v", got)
	}
}

func TestLoadPipelinesRejectsEmptySources(t *testing.T) {
	path := writePipelines(t, `
users:
  - username: carol
    pipelines:
      - sources: []
`)
	if _, err := LoadPipelines(path); err == nil {
		t.Fatal("empty source list must fail validation")
	}
}

func TestLoadPipelinesRejectsDuplicateUsers(t *testing.T) {
	path := writePipelines(t, `
users:
  - username: carol
    pipelines:
      - sources: [{type: s3}]
  - username: carol
    pipelines:
      - sources: [{type: s3}]
`)
	if _, err := LoadPipelines(path); err == nil {
		t.Fatal("duplicate usernames must fail validation")
	}
}
