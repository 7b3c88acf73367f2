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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/cli"
	"github.com/minio/pkg/v3/console"
	"github.com/minio/mc/pkg/probe"

	"github.com/nexus-data/nexus-core/pkg/catalog"
	"github.com/nexus-data/nexus-core/pkg/orchestrator"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
	"github.com/nexus-data/nexus-core/pkg/resourcepath"
)

var exportCmd = cli.Command{
	Name:   "export",
	Usage:  "read one or more resource paths and write dense little-endian F64 rows to files",
	Action: mainExport,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "begin",
			Usage: "inclusive begin of the export range (RFC 3339)",
		},
		cli.StringFlag{
			Name:  "end",
			Usage: "exclusive end of the export range (RFC 3339)",
		},
		cli.StringFlag{
			Name:  "out",
			Value: ".",
			Usage: "output directory",
		},
	},
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS] RESOURCE-PATH...
{{if .VisibleFlags}}
FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
EXAMPLES:
  1. Export ten minutes of one-minute means:
     $ {{.HelpName}} --begin 2024-01-01T00:00:00Z --end 2024-01-01T00:10:00Z \
         "/A/B/temperature/1_min_mean#base=1_s"
`,
}

func mainExport(cliCtx *cli.Context) error {
	paths := cliCtx.Args()
	if len(paths) == 0 {
		fatalIf(errInvalidArgument().Trace(), "No resource paths given.")
	}

	begin, e := time.Parse(time.RFC3339, cliCtx.String("begin"))
	fatalIf(probe.NewError(e), "Unable to parse --begin.")
	end, e := time.Parse(time.RFC3339, cliCtx.String("end"))
	fatalIf(probe.NewError(e), "Unable to parse --end.")

	ctx := context.Background()
	sys, err := buildSystem(ctx, cliCtx)
	fatalIf(probe.NewError(err).Trace(), "Unable to build the data plane.")

	var samplePeriod int64
	var requests []orchestrator.ReadRequest
	var files []*os.File
	for _, p := range paths {
		parsed, err := resourcepath.Parse(p)
		fatalIf(probe.NewError(err).Trace(p), "Invalid resource path.")
		if samplePeriod == 0 {
			samplePeriod = int64(parsed.SamplePeriod)
		} else if samplePeriod != int64(parsed.SamplePeriod) {
			fatalIf(errInvalidArgument().Trace(p), "All resource paths must share one sample period.")
		}

		item, err := sys.manager.TryFind(ctx, p, sys.checker)
		fatalIf(probe.NewError(err).Trace(p), "Unable to resolve resource path.")

		f, e := os.Create(filepath.Join(cliCtx.String("out"), exportFileName(parsed)))
		fatalIf(probe.NewError(e), "Unable to create output file.")
		files = append(files, f)

		requests = append(requests, orchestrator.ReadRequest{
			Group:       item.Container.Controller(),
			ReadRequest: toPipelineRequest(item, f),
		})
	}

	rows := end.Sub(begin).Nanoseconds() / samplePeriod
	var bar *progressBar
	var progress orchestrator.Progress = orchestrator.NopProgress{}
	if !globalQuiet {
		bar = newProgressBar(rows * 8 * int64(len(requests)))
		progress = bar
	}

	o := orchestrator.New(sys.tracker, consoleLogger{})
	err = o.Read(ctx, begin, end, samplePeriod, requests, progress)
	if bar != nil {
		bar.finish()
	}
	for _, f := range files {
		f.Close()
	}
	fatalIf(probe.NewError(err).Trace(), "Export failed.")

	if !globalQuiet {
		console.Infoln("exported", len(requests), "series,", rows, "rows each")
	}
	return nil
}

// toPipelineRequest lowers a resolved CatalogItemRequest into the
// pipeline-level read request the orchestrator fans out.
func toPipelineRequest(item catalog.CatalogItemRequest, w *os.File) pipeline.ReadRequest {
	req := pipeline.ReadRequest{
		CatalogID:        item.Item.CatalogID,
		Resource:         item.Item.Resource,
		SamplePeriod:     item.Item.Representation.SamplePeriod,
		DataType:         item.Item.Representation.DataType,
		Kind:             item.Item.Representation.Kind,
		PipelinePosition: item.Item.PipelinePosition,
		Writer:           w,
	}
	if item.BaseItem != nil {
		req.BaseItem = &pipeline.BaseItem{
			SamplePeriod: item.BaseItem.Representation.SamplePeriod,
			DataType:     item.BaseItem.Representation.DataType,
		}
	}
	return req
}

// exportFileName flattens a parsed path into a single file name.
func exportFileName(p resourcepath.Path) string {
	flat := strings.ReplaceAll(strings.Trim(p.CatalogID, "/"), "/", "_")
	name := flat + "_" + p.Resource + "_" + p.SamplePeriod.String()
	if p.Kind != resourcepath.Original {
		name += "_" + p.Kind.String()
	}
	return name + ".bin"
}

var errInvalidArgument = func() *probe.Error {
	return probe.NewError(errors.New("invalid arguments provided, please refer to `" + appName + " <command> -h` for relevant documentation")).Untrace()
}
