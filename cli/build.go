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
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/minio/cli"

	"github.com/nexus-data/nexus-core/pkg/cache"
	"github.com/nexus-data/nexus-core/pkg/catalog"
	"github.com/nexus-data/nexus-core/pkg/config"
	"github.com/nexus-data/nexus-core/pkg/filedb"
	"github.com/nexus-data/nexus-core/pkg/memtrack"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
	"github.com/nexus-data/nexus-core/pkg/pipeline/sources"
	"github.com/nexus-data/nexus-core/pkg/version"
)

// system is the wired data plane: settings, cache, catalog manager, and
// the memory tracker, built once per command invocation.
type system struct {
	settings config.Settings
	layout   filedb.Layout
	cache    *cache.Service
	manager  *catalog.Manager
	tracker  *memtrack.Tracker
	checker  *catalog.AccessChecker
}

// cacheAdapter narrows *cache.Service to the pipeline controller's
// CacheService seam, converting the interval type at the boundary.
type cacheAdapter struct {
	svc *cache.Service
}

func (a cacheAdapter) Enabled(catalogID string) bool { return a.svc.Enabled(catalogID) }

func (a cacheAdapter) Read(ctx context.Context, catalogID, resource string, samplePeriod, begin, end int64, target []float64) ([]pipeline.Interval, error) {
	uncached, err := a.svc.Read(ctx, catalogID, resource, samplePeriod, begin, end, target)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Interval, len(uncached))
	for i, iv := range uncached {
		out[i] = pipeline.Interval{Begin: iv.Begin, End: iv.End}
	}
	return out, nil
}

func (a cacheAdapter) Write(ctx context.Context, catalogID, resource string, samplePeriod, begin int64, values []float64) error {
	return a.svc.Write(ctx, catalogID, resource, samplePeriod, begin, values)
}

// newSource maps a registration type to its backend.
func newSource(typ string) (pipeline.DataSource, error) {
	switch typ {
	case "s3", "minio":
		return &sources.S3Source{}, nil
	case "aws":
		return &sources.AWSSource{}, nil
	default:
		return nil, fmt.Errorf("unknown data source type %q", typ)
	}
}

// buildSystem loads settings and the pipeline registration document,
// constructs every pipeline controller, and assembles the catalog
// manager over them.
func buildSystem(ctx context.Context, cliCtx *cli.Context) (*system, error) {
	settings, err := config.Load(cliCtx.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	layout := filedb.Layout{
		CacheRoot:     settings.Paths.Cache,
		CatalogsRoot:  settings.Paths.Catalogs,
		ArtifactsRoot: settings.Paths.Artifacts,
		PackagesRoot:  settings.Paths.Packages,
		ConfigRoot:    settings.Paths.Config,
	}
	if layout.CacheRoot == "" && settings.Paths.Packages != "" {
		layout.CacheRoot = filepath.Join(settings.Paths.Packages, "cache")
	}

	var cachePattern *regexp.Regexp
	if settings.CachePattern != "" {
		cachePattern, err = regexp.Compile(settings.CachePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid cache pattern %q: %w", settings.CachePattern, err)
		}
	}
	cacheService := cache.NewService(layout, cache.DefaultFilePeriod, cachePattern)

	pipelinesPath := cliCtx.GlobalString("pipelines")
	if pipelinesPath == "" {
		pipelinesPath = filepath.Join(settings.Paths.Config, "pipelines.yaml")
	}
	userRegs, err := config.LoadPipelines(pipelinesPath)
	if err != nil {
		return nil, err
	}

	logger := consoleLogger{}
	var users []catalog.UserPipelines
	for _, u := range userRegs {
		up := catalog.UserPipelines{Username: u.Username, IsAdmin: u.IsAdmin}
		for _, p := range u.Pipelines {
			var srcs []pipeline.DataSource
			var regs []pipeline.Registration
			for _, s := range p.Sources {
				src, err := newSource(s.Type)
				if err != nil {
					return nil, fmt.Errorf("user %q: %w", u.Username, err)
				}
				srcs = append(srcs, src)
				regs = append(regs, pipeline.Registration{
					Type:              s.Type,
					ResourceLocator:   s.ResourceLocator,
					Configuration:     s.Configuration,
					InfoURL:           s.InfoURL,
					ReleasePattern:    p.ReleasePattern,
					VisibilityPattern: p.VisibilityPattern,
				})
			}
			ctrl := pipeline.NewController(srcs, regs, cacheAdapter{svc: cacheService}).
				WithAggregationThreshold(settings.AggregationNaNThreshold).
				WithVersionInfo(version.Version, version.Version, "https://github.com/nexus-data/nexus-core")
			if err := ctrl.Init(ctx, nil, nil, logger); err != nil {
				return nil, err
			}
			up.Pipelines = append(up.Pipelines, ctrl)
		}
		users = append(users, up)
	}

	// The CLI operates with the local operator's full privileges.
	checker := catalog.NewAccessChecker(catalog.Principal{
		Username: "cli",
		Claims:   map[string][]string{catalog.ClaimRole: {catalog.RoleAdministrator}},
	})

	return &system{
		settings: settings,
		layout:   layout,
		cache:    cacheService,
		manager:  catalog.NewManager(users, logger),
		tracker:  memtrack.New(settings.TotalBufferMemoryConsumption, memtrack.DefaultFactor),
		checker:  checker,
	}, nil
}
