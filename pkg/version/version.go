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

// Package version holds the build identity stamped in by the linker.
package version

var (
	// Version is the semantic version, set via -ldflags at release time.
	Version = "(dev)"
	// ReleaseTag is the release tag of the current build.
	ReleaseTag = "DEVELOPMENT.GOGET"
	// ReleaseTime is the UTC timestamp of the release.
	ReleaseTime = ""
	// CommitID is the full git commit the build was made from.
	CommitID = "DEVELOPMENT.GOGET"
	// ShortCommitID is the first 12 characters of CommitID.
	ShortCommitID = CommitID[:12]
)
