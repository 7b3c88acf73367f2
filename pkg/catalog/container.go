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

// Package catalog implements the catalog manager: the
// lazy, per-user-pipeline-merged hierarchical namespace of catalogs,
// soft-link resolution, resource path resolution, and the
// authorization filter applied at enumeration.
package catalog

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// Container is one node of the catalog tree. Its children and its
// enriched catalog info are fetched lazily on first access (or always,
// if the node is transient) under a per-node binary semaphore held
// across the I/O.
type Container struct {
	// ID is the slash-delimited absolute catalog path; "/" for the root.
	ID string
	// Owner is the username whose pipeline contributed this node; empty
	// only for the root and for ownerless (public) nodes.
	Owner string
	// LinkTarget, when non-empty, marks this node as a soft link whose
	// content is taken from the target catalog ID.
	LinkTarget string
	// Transient nodes re-fetch their children and info on every access
	// instead of caching them.
	Transient bool

	controller *pipeline.Controller
	manager    *Manager

	sem      *semaphore.Weighted
	children []*Container
	haveKids bool
	info     *pipeline.Catalog
}

func newContainer(m *Manager, id, owner string, ctrl *pipeline.Controller) *Container {
	return &Container{
		ID:         id,
		Owner:      owner,
		controller: ctrl,
		manager:    m,
		sem:        semaphore.NewWeighted(1),
	}
}

// Controller returns the pipeline controller that produced this node.
// Nil for the root.
func (c *Container) Controller() *pipeline.Controller { return c.controller }

// ChildCatalogContainers returns the node's direct children, fetching
// them through the catalog manager on first call — or on every call if
// the node is transient. Concurrent callers queue on the node's
// semaphore so the fetch happens once.
func (c *Container) ChildCatalogContainers(ctx context.Context) ([]*Container, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if c.haveKids && !c.Transient {
		return c.children, nil
	}
	kids, err := c.manager.fetchChildren(ctx, c)
	if err != nil {
		return nil, err
	}
	c.children = kids
	c.haveKids = true
	return kids, nil
}

// Catalog returns the node's enriched catalog, running the pipeline's
// enrichment chain on first call. Non-transient results are also
// published to the manager's process-wide catalog cache, which is
// append-only per request.
func (c *Container) Catalog(ctx context.Context) (pipeline.Catalog, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return pipeline.Catalog{}, err
	}
	defer c.sem.Release(1)

	if c.controller == nil {
		return pipeline.Catalog{ID: c.ID}, nil
	}
	if c.info != nil && !c.Transient {
		return *c.info, nil
	}
	if !c.Transient {
		if cached, ok := c.manager.cachedCatalog(c.ID); ok {
			c.info = &cached
			return cached, nil
		}
	}
	cat, err := c.controller.GetCatalog(ctx, c.ID)
	if err != nil {
		return pipeline.Catalog{}, err
	}
	if !c.Transient {
		c.manager.storeCatalog(cat)
		c.info = &cat
	}
	return cat, nil
}

// Invalidate drops the node's cached children and catalog info, forcing
// a re-fetch on next access. Called after a metadata update.
func (c *Container) Invalidate(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)
	c.children = nil
	c.haveKids = false
	c.info = nil
	c.manager.dropCatalog(c.ID)
	return nil
}
