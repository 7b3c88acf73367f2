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
	"regexp"
)

// Claim types understood by the authorization filter.
// Personal-access-token identities carry the same claims under the
// parallel "pat_" (token grants) and "pat_user_" (owning user's
// grants) namespaces.
const (
	ClaimCanReadCatalog         = "CanReadCatalog"
	ClaimCanWriteCatalog        = "CanWriteCatalog"
	ClaimCanReadCatalogGroup    = "CanReadCatalogGroup"
	ClaimCanWriteCatalogGroup   = "CanWriteCatalogGroup"
	ClaimRole                   = "role"
	ClaimEnabledCatalogsPattern = "EnabledCatalogsPattern"

	RoleAdministrator = "Administrator"

	patPrefix     = "pat_"
	patUserPrefix = "pat_user_"
)

// Principal is the caller identity the catalog manager filters for: a
// username plus its raw claim set. A personal-access-token identity is
// recognized by the presence of any "pat_"-namespaced claim.
type Principal struct {
	Username string
	Claims   map[string][]string
}

// IsPAT reports whether p is a personal-access-token identity.
func (p Principal) IsPAT() bool {
	for k := range p.Claims {
		if len(k) > len(patPrefix) && k[:len(patPrefix)] == patPrefix {
			return true
		}
	}
	return false
}

func (p Principal) claim(name string) []string {
	if p.Claims == nil {
		return nil
	}
	return p.Claims[name]
}

func hasValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// AccessChecker is the precomputed claim set for one identity: admin is
// resolved once and short-circuits every later check, and claim lists
// are pulled out of the map once instead of per catalog inside
// enumeration loops.
type AccessChecker struct {
	admin      bool
	enabled    []*regexp.Regexp
	hasEnabled bool

	readCatalog  []string
	writeCatalog []string
	readGroup    []string
	writeGroup   []string
}

// NewAccessChecker resolves p's claims into an AccessChecker. For a PAT
// identity the effective catalog/group claims are the token's own
// grants ("pat_" namespace); the owning user's "pat_user_" claims are
// consulted for the administrator role only, which a PAT holds iff
// both the user and the token claim it.
func NewAccessChecker(p Principal) *AccessChecker {
	c := &AccessChecker{}

	if p.IsPAT() {
		tokenAdmin := hasValue(p.claim(patPrefix+ClaimRole), RoleAdministrator)
		userAdmin := hasValue(p.claim(patUserPrefix+ClaimRole), RoleAdministrator)
		c.admin = tokenAdmin && userAdmin
		c.readCatalog = p.claim(patPrefix + ClaimCanReadCatalog)
		c.writeCatalog = p.claim(patPrefix + ClaimCanWriteCatalog)
		c.readGroup = p.claim(patPrefix + ClaimCanReadCatalogGroup)
		c.writeGroup = p.claim(patPrefix + ClaimCanWriteCatalogGroup)
	} else {
		c.admin = hasValue(p.claim(ClaimRole), RoleAdministrator)
		c.readCatalog = p.claim(ClaimCanReadCatalog)
		c.writeCatalog = p.claim(ClaimCanWriteCatalog)
		c.readGroup = p.claim(ClaimCanReadCatalogGroup)
		c.writeGroup = p.claim(ClaimCanWriteCatalogGroup)
	}

	for _, pat := range p.claim(ClaimEnabledCatalogsPattern) {
		c.hasEnabled = true
		if re, err := regexp.Compile(pat); err == nil {
			c.enabled = append(c.enabled, re)
		}
	}
	return c
}

// IsAdmin reports whether this identity acts as an administrator.
func (c *AccessChecker) IsAdmin() bool { return c.admin }

// Enabled reports whether the enabled-catalogs-pattern claim permits
// catalogID at all. The restriction applies before every other rule,
// administrators included: a session scoped to a pattern cannot see
// outside it.
func (c *AccessChecker) Enabled(catalogID string) bool {
	if !c.hasEnabled {
		return true
	}
	for _, re := range c.enabled {
		if re.MatchString(catalogID) {
			return true
		}
	}
	return false
}

// matchClaim matches a claim value against a catalog ID literally or,
// failing that, as a regular expression.
func matchClaim(values []string, catalogID string) bool {
	for _, v := range values {
		if v == catalogID {
			return true
		}
		if re, err := regexp.Compile(v); err == nil && re.MatchString(catalogID) {
			return true
		}
	}
	return false
}

func matchGroupClaim(values []string, groups []string) bool {
	for _, g := range groups {
		if hasValue(values, g) {
			return true
		}
	}
	return false
}

// CanRead implements the readability rule: admin, or a
// CanReadCatalog claim matching the ID (literal or regex), or a
// CanReadCatalogGroup claim matching any of the catalog's groups, or
// the node has no owner (public) — all gated on the enabled pattern.
func (c *AccessChecker) CanRead(catalogID, owner string, groups []string) bool {
	if !c.Enabled(catalogID) {
		return false
	}
	if c.admin {
		return true
	}
	if owner == "" {
		return true
	}
	if matchClaim(c.readCatalog, catalogID) {
		return true
	}
	return matchGroupClaim(c.readGroup, groups)
}

// CanWrite is the writability analogue of CanRead. Ownerless nodes are
// publicly readable but not publicly writable.
func (c *AccessChecker) CanWrite(catalogID, owner string, groups []string) bool {
	if !c.Enabled(catalogID) {
		return false
	}
	if c.admin {
		return true
	}
	if matchClaim(c.writeCatalog, catalogID) {
		return true
	}
	return matchGroupClaim(c.writeGroup, groups)
}
