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

// Package cli implements the nexusd command line: serve, export,
// cache-clear, version.
package cli

import (
	encbinary "encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb"
	"github.com/minio/cli"
	"github.com/minio/pkg/v3/console"
	"github.com/minio/mc/pkg/probe"

	"github.com/nexus-data/nexus-core/pkg/version"
)

var (
	globalQuiet = false // Quiet flag set via command line
	globalJSON  = false // Json flag set via command line
	globalDebug = false // Debug flag set via command line
	// Terminal width
	globalTermWidth int
)

const appName = "nexusd"

var globalFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: "suppress chatty console output",
	},
	cli.BoolFlag{
		Name:  "json",
		Usage: "enable JSON formatted output",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug output",
	},
	cli.StringFlag{
		Name:  "config",
		Usage: "path to the settings file (JSON or INI); NEXUS_-prefixed environment variables override",
	},
	cli.StringFlag{
		Name:  "pipelines",
		Usage: "path to the pipeline registration document (default <configRoot>/pipelines.yaml)",
	},
}

// Main is the nexusd entrypoint.
func Main(args []string) {
	// The cache entry format and the streaming endpoints are
	// little-endian only; refuse to run elsewhere.
	if !hostIsLittleEndian() {
		console.Errorln("nexusd requires a little-endian host")
		os.Exit(1)
	}

	probe.Init() // Set project's root source path.
	probe.SetAppInfo("Release-Tag", version.ReleaseTag)
	probe.SetAppInfo("Commit", version.ShortCommitID)

	if w, e := pb.GetTerminalWidth(); e != nil {
		globalQuiet = true
	} else {
		globalTermWidth = w
	}

	name := filepath.Base(args[0])
	if err := registerApp(name, appCmds).Run(args); err != nil {
		os.Exit(1)
	}
}

func hostIsLittleEndian() bool {
	return encbinary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 0x0001
}

var appCmds = []cli.Command{
	serveCmd,
	exportCmd,
	cacheCmd,
	versionCmd,
}

func registerApp(name string, appCmds []cli.Command) *cli.App {
	cli.HelpFlag = cli.BoolFlag{
		Name:  "help, h",
		Usage: "show help",
	}

	app := cli.NewApp()
	app.Name = name
	app.Action = func(ctx *cli.Context) {
		cli.ShowAppHelp(ctx)
	}
	app.Before = func(ctx *cli.Context) error {
		globalQuiet = globalQuiet || ctx.Bool("quiet")
		globalJSON = ctx.Bool("json")
		globalDebug = ctx.Bool("debug")
		return nil
	}
	app.HideHelpCommand = true
	app.Usage = "Nexus time-series data plane."
	app.Commands = appCmds
	app.Author = "Nexus Authors"
	app.Version = version.ReleaseTag
	app.Flags = append(app.Flags, globalFlags...)
	app.EnableBashCompletion = true
	return app
}

// fatalIf wraps a fatal error message with the probe error trace and
// exits.
func fatalIf(err *probe.Error, msg string, data ...any) {
	if err == nil {
		return
	}
	if msg != "" {
		msg = fmt.Sprintf(msg, data...)
		console.Errorln(fmt.Sprintf("%s %s", msg, err.ToGoError()))
	} else {
		console.Errorln(err.ToGoError().Error())
	}
	if globalDebug {
		console.Errorln(err.String())
	}
	os.Exit(1)
}

// errorIf prints a non-fatal error.
func errorIf(err *probe.Error, msg string, data ...any) {
	if err == nil {
		return
	}
	if msg != "" {
		msg = fmt.Sprintf(msg, data...)
		console.Errorln(fmt.Sprintf("%s %s", msg, err.ToGoError()))
	} else {
		console.Errorln(err.ToGoError().Error())
	}
}

// consoleLogger adapts the package-level console functions to the
// pipeline.Logger seam library packages accept.
type consoleLogger struct{}

func (consoleLogger) Printf(format string, args ...any) {
	if globalQuiet {
		return
	}
	console.Printf(format+"\n", args...)
}

func (consoleLogger) Errorf(format string, args ...any) {
	console.Errorf(format+"\n", args...)
}
