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

package cli

import (
	"fmt"

	"github.com/minio/cli"
	json "github.com/minio/colorjson"
	"github.com/minio/pkg/v3/console"
	"github.com/minio/mc/pkg/probe"

	"github.com/nexus-data/nexus-core/pkg/version"
)

var versionCmd = cli.Command{
	Name:   "version",
	Usage:  "show version info",
	Action: mainVersion,
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}}
`,
}

type versionMessage struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	ReleaseTag string `json:"release_tag"`
	CommitID   string `json:"commit_id"`
}

func (v versionMessage) String() string {
	return fmt.Sprintf("Version: %s\nRelease tag: %s\nCommit-id: %s", v.Version, v.ReleaseTag, v.CommitID)
}

func (v versionMessage) JSON() string {
	v.Status = "success"
	msgBytes, e := json.MarshalIndent(v, "", " ")
	fatalIf(probe.NewError(e), "Unable to marshal into JSON.")
	return string(msgBytes)
}

func mainVersion(ctx *cli.Context) error {
	verMsg := versionMessage{
		Version:    version.Version,
		ReleaseTag: version.ReleaseTag,
		CommitID:   version.CommitID,
	}
	if !globalQuiet {
		if globalJSON || ctx.Bool("json") {
			console.Println(verMsg.JSON())
		} else {
			console.Println(verMsg)
		}
	}
	return nil
}
