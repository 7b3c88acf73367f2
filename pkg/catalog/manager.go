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

package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// maxSoftLinkHops bounds soft-link resolution; beyond it, resolution
// fails with NotFound.
const maxSoftLinkHops = 10

// UserPipelines is one user's ordered pipeline list plus the privilege
// flag that orders users during tree construction (administrators
// first).
type UserPipelines struct {
	Username  string
	IsAdmin   bool
	Pipelines []*pipeline.Controller
}

// Manager builds and refreshes the catalog container tree from per-user
// pipelines and resolves resource paths to concrete read requests.
type Manager struct {
	users  []UserPipelines
	logger pipeline.Logger

	root *Container

	mu      sync.Mutex
	claimed map[string]claimant

	// catalogs is the process-wide catalog cache:
	// concurrent-safe and append-only per request. sync.Map's
	// LoadOrStore is the TryAdd-idempotent-by-identity primitive.
	catalogs sync.Map
}

// NewManager orders users descending by privilege (administrators
// first, otherwise stable) and returns a manager rooted at "/".
func NewManager(users []UserPipelines, logger pipeline.Logger) *Manager {
	if logger == nil {
		logger = pipeline.NopLogger{}
	}
	ordered := make([]UserPipelines, len(users))
	copy(ordered, users)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].IsAdmin && !ordered[j].IsAdmin
	})

	m := &Manager{
		users:   ordered,
		logger:  logger,
		claimed: make(map[string]claimant),
	}
	m.root = newContainer(m, "/", "", nil)
	return m
}

// Root returns the root container. The root has no owner and no
// pipeline of its own.
func (m *Manager) Root() *Container { return m.root }

func (m *Manager) cachedCatalog(id string) (pipeline.Catalog, bool) {
	v, ok := m.catalogs.Load(id)
	if !ok {
		return pipeline.Catalog{}, false
	}
	return v.(pipeline.Catalog), true
}

func (m *Manager) storeCatalog(cat pipeline.Catalog) {
	m.catalogs.LoadOrStore(cat.ID, cat)
}

func (m *Manager) dropCatalog(id string) {
	m.catalogs.Delete(id)
}

type claimant struct {
	user string
	ctrl *pipeline.Controller
}

// claim records id as taken by cl, or reports that it (or a prefix of
// it) is already claimed by a different user/pipeline. Each catalog ID
// appears at most once across all users; a registration whose ID
// starts with an already-claimed ID is skipped. The same
// claimant may register deeper IDs under its own subtree.
func (m *Manager) claim(id string, cl claimant) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prev, owner := range m.claimed {
		if strings.HasPrefix(id, prev) && owner != cl {
			return false
		}
	}
	m.claimed[id] = cl
	return true
}

// fetchChildren realizes the direct children of parent: users in
// privilege order, their pipelines in list order, each asked for its
// registrations under the parent path. A registration deeper than one
// level materializes an intermediate node carrying the same pipeline,
// so the prefix walk of GetContainer always finds a chain of nodes.
func (m *Manager) fetchChildren(ctx context.Context, parent *Container) ([]*Container, error) {
	prefix := parent.ID
	if prefix != "/" {
		prefix += "/"
	}

	var out []*Container
	index := make(map[string]*Container)
	for _, u := range m.users {
		for _, ctrl := range u.Pipelines {
			regs, err := ctrl.GetCatalogRegistrations(ctx, parent.ID)
			if err != nil {
				return nil, err
			}
			cl := claimant{user: u.Username, ctrl: ctrl}
			for _, r := range regs {
				if !strings.HasPrefix(r.ID, prefix) || r.ID == parent.ID {
					continue
				}
				seg := r.ID[len(prefix):]
				if i := strings.IndexByte(seg, '/'); i >= 0 {
					seg = seg[:i]
				}
				childID := prefix + seg
				if existing, ok := index[childID]; ok {
					if childID == r.ID {
						existing.Transient = r.Transient
						existing.LinkTarget = r.LinkTarget
					}
					continue
				}
				if !m.claim(childID, cl) {
					m.logger.Printf("catalog: skipping registration %s (already claimed)", childID)
					continue
				}
				child := newContainer(m, childID, u.Username, ctrl)
				if childID == r.ID {
					child.Transient = r.Transient
					child.LinkTarget = r.LinkTarget
				}
				index[childID] = child
				out = append(out, child)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetContainer walks the tree from the root toward catalogID, following
// the ID-prefix invariant (a node's ID prefixes every descendant's
// ID), and resolves soft links encountered on the way.
// It fails with a KindForbidden error when the resolved container is not
// readable by checker. A nil
// checker skips authorization (internal callers).
func (m *Manager) GetContainer(ctx context.Context, catalogID string, checker *AccessChecker) (*Container, error) {
	return m.getContainer(ctx, catalogID, checker, 0)
}

func (m *Manager) getContainer(ctx context.Context, catalogID string, checker *AccessChecker, hops int) (*Container, error) {
	if !strings.HasPrefix(catalogID, "/") {
		return nil, nexuserr.Validation("catalog: ID %q is not absolute", catalogID)
	}
	node := m.root
	for node.ID != catalogID {
		kids, err := node.ChildCatalogContainers(ctx)
		if err != nil {
			return nil, err
		}
		var next *Container
		for _, k := range kids {
			if k.ID == catalogID || strings.HasPrefix(catalogID, k.ID+"/") {
				next = k
				break
			}
		}
		if next == nil {
			return nil, nexuserr.NotFound("catalog: %s not found", catalogID)
		}
		node = next
		if node.LinkTarget != "" && node.ID != catalogID {
			// A soft link in the middle of the walk redirects the
			// remainder of the path under the target.
			rest := catalogID[len(node.ID):]
			return m.resolveLink(ctx, node.LinkTarget+rest, checker, hops+1)
		}
	}

	if node.LinkTarget != "" {
		return m.resolveLink(ctx, node.LinkTarget, checker, hops+1)
	}
	if checker != nil && !checker.CanRead(node.ID, node.Owner, catalogGroups(ctx, node)) {
		return nil, nexuserr.Forbidden("catalog: access to %s denied", node.ID)
	}
	return node, nil
}

func (m *Manager) resolveLink(ctx context.Context, target string, checker *AccessChecker, hops int) (*Container, error) {
	if hops > maxSoftLinkHops {
		return nil, nexuserr.NotFound("catalog: soft link chain exceeds %d hops", maxSoftLinkHops)
	}
	return m.getContainer(ctx, target, checker, hops)
}

// catalogGroups extracts the "groups" property of an already-enriched
// catalog for the group-claim check. Nodes whose catalog has not been
// realized yet authorize on identity and owner alone; the group claim
// re-applies once the catalog is enriched.
func catalogGroups(ctx context.Context, c *Container) []string {
	if c.info == nil {
		return nil
	}
	raw, ok := c.info.Properties["groups"]
	if !ok {
		return nil
	}
	groups, _ := raw.([]string)
	return groups
}

// EnumerateReadable returns the children of parent visible to checker,
// applying the authorization filter at enumeration.
func (m *Manager) EnumerateReadable(ctx context.Context, parent *Container, checker *AccessChecker) ([]*Container, error) {
	kids, err := parent.ChildCatalogContainers(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Container
	for _, k := range kids {
		if checker == nil || checker.CanRead(k.ID, k.Owner, catalogGroups(ctx, k)) {
			out = append(out, k)
		}
	}
	return out, nil
}
