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
	"context"
	"time"

	"github.com/minio/cli"
	"github.com/minio/pkg/v3/console"
	"github.com/minio/mc/pkg/probe"

	"github.com/nexus-data/nexus-core/pkg/jobs"
	"github.com/nexus-data/nexus-core/pkg/sampleperiod"
)

var cacheCmd = cli.Command{
	Name:  "cache",
	Usage: "cache maintenance",
	Subcommands: []cli.Command{
		cacheClearCmd,
	},
	HideHelpCommand: true,
}

var cacheClearCmd = cli.Command{
	Name:   "clear",
	Usage:  "delete cached buckets of a resource within a date range",
	Action: mainCacheClear,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "catalog",
			Usage: "absolute catalog ID",
		},
		cli.StringFlag{
			Name:  "resource",
			Usage: "resource name",
		},
		cli.StringFlag{
			Name:  "sample-period",
			Usage: "cached representation's sample period, e.g. 10_min",
		},
		cli.StringFlag{
			Name:  "begin",
			Usage: "inclusive begin of the clear range (RFC 3339)",
		},
		cli.StringFlag{
			Name:  "end",
			Usage: "exclusive end of the clear range (RFC 3339)",
		},
	},
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]
{{if .VisibleFlags}}
FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
EXAMPLES:
  1. Clear one week of cached ten-minute aggregates:
     $ {{.HelpName}} --catalog /A/B --resource temperature --sample-period 10_min \
         --begin 2024-01-01T00:00:00Z --end 2024-01-08T00:00:00Z
`,
}

func mainCacheClear(cliCtx *cli.Context) error {
	catalogID := cliCtx.String("catalog")
	resource := cliCtx.String("resource")
	if catalogID == "" || resource == "" {
		fatalIf(errInvalidArgument().Trace(), "Both --catalog and --resource are required.")
	}
	sp, err := sampleperiod.Parse(cliCtx.String("sample-period"))
	fatalIf(probe.NewError(err).Trace(), "Unable to parse --sample-period.")
	begin, e := time.Parse(time.RFC3339, cliCtx.String("begin"))
	fatalIf(probe.NewError(e), "Unable to parse --begin.")
	end, e := time.Parse(time.RFC3339, cliCtx.String("end"))
	fatalIf(probe.NewError(e), "Unable to parse --end.")

	ctx := context.Background()
	sys, err := buildSystem(ctx, cliCtx)
	fatalIf(probe.NewError(err).Trace(), "Unable to build the data plane.")

	// Days are traversed in sequence so progress can be reported; the
	// job registry is the same surface an attached transport polls.
	registry := jobs.NewRegistry()
	job := registry.Start("cache-clear", catalogID)

	buckets := sys.cache.Buckets(begin.UnixNano(), end.UnixNano())
	cleared, visited := 0, 0
	err = sys.cache.Clear(ctx, catalogID, resource, int64(sp), begin.UnixNano(), end.UnixNano(), func(fileBegin int64) {
		visited++
		if len(buckets) > 0 {
			registry.SetProgress(job.ID, float64(visited)/float64(len(buckets)))
		}
		if fileBegin < begin.UnixNano() || fileBegin >= end.UnixNano() {
			return
		}
		cleared++
		if globalDebug {
			console.Infoln("cleared bucket", time.Unix(0, fileBegin).UTC().Format(time.RFC3339))
		}
	})
	registry.Complete(job.ID, err)
	fatalIf(probe.NewError(err).Trace(), "Cache clear failed.")

	if !globalQuiet {
		console.Infoln("cleared", cleared, "cache buckets for", catalogID+"/"+resource)
	}
	return nil
}
