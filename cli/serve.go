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
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/minio/cli"
	"github.com/minio/pkg/v3/console"
	"github.com/minio/mc/pkg/probe"
)

var serveCmd = cli.Command{
	Name:   "serve",
	Usage:  "build the catalog tree and hold it warm for an attached transport",
	Action: mainServe,
	Flags:  []cli.Flag{},
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}}{{if .VisibleFlags}} [FLAGS]{{end}}
{{if .VisibleFlags}}
FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
EXAMPLES:
  1. Serve with settings from a file:
     $ {{.HelpName}} --config /etc/nexus/settings.json
`,
}

func mainServe(cliCtx *cli.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sys, err := buildSystem(ctx, cliCtx)
	fatalIf(probe.NewError(err).Trace(), "Unable to build the data plane.")

	roots, err := sys.manager.EnumerateReadable(ctx, sys.manager.Root(), sys.checker)
	fatalIf(probe.NewError(err).Trace(), "Unable to enumerate root catalogs.")

	if !globalQuiet {
		console.Infoln("buffer memory budget:", humanize.IBytes(uint64(sys.settings.TotalBufferMemoryConsumption)))
		console.Infoln("serving", len(roots), "root catalogs")
		for _, c := range roots {
			console.Println("  " + c.ID)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	console.Infoln("shutting down")
	return nil
}
