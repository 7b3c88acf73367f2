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

import "testing"

func TestCanReadTruthTable(t *testing.T) {
	const id = "/A/B"
	groups := []string{"experiment-7"}

	tests := []struct {
		name   string
		claims map[string][]string
		owner  string
		want   bool
	}{
		{
			name:   "admin reads everything",
			claims: map[string][]string{ClaimRole: {RoleAdministrator}},
			owner:  "carol",
			want:   true,
		},
		{
			name:   "no claims, owned catalog",
			claims: nil,
			owner:  "carol",
			want:   false,
		},
		{
			name:   "no claims, ownerless catalog is public",
			claims: nil,
			owner:  "",
			want:   true,
		},
		{
			name:   "literal CanReadCatalog match",
			claims: map[string][]string{ClaimCanReadCatalog: {"/A/B"}},
			owner:  "carol",
			want:   true,
		},
		{
			name:   "regex CanReadCatalog match",
			claims: map[string][]string{ClaimCanReadCatalog: {"^/A/.*"}},
			owner:  "carol",
			want:   true,
		},
		{
			name:   "regex CanReadCatalog miss",
			claims: map[string][]string{ClaimCanReadCatalog: {"^/C/.*"}},
			owner:  "carol",
			want:   false,
		},
		{
			name:   "group claim match",
			claims: map[string][]string{ClaimCanReadCatalogGroup: {"experiment-7"}},
			owner:  "carol",
			want:   true,
		},
		{
			name:   "group claim miss",
			claims: map[string][]string{ClaimCanReadCatalogGroup: {"experiment-8"}},
			owner:  "carol",
			want:   false,
		},
		{
			name: "enabled pattern excludes even admins",
			claims: map[string][]string{
				ClaimRole:                   {RoleAdministrator},
				ClaimEnabledCatalogsPattern: {"^/C"},
			},
			owner: "carol",
			want:  false,
		},
		{
			name: "enabled pattern admits matching IDs",
			claims: map[string][]string{
				ClaimCanReadCatalog:         {"/A/B"},
				ClaimEnabledCatalogsPattern: {"^/A"},
			},
			owner: "carol",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAccessChecker(Principal{Username: "u", Claims: tt.claims})
			if got := c.CanRead(id, tt.owner, groups); got != tt.want {
				t.Errorf("CanRead = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPATAdminRequiresBothRoles(t *testing.T) {
	tests := []struct {
		name      string
		claims    map[string][]string
		wantAdmin bool
	}{
		{
			name: "token and user admin",
			claims: map[string][]string{
				patPrefix + ClaimRole:     {RoleAdministrator},
				patUserPrefix + ClaimRole: {RoleAdministrator},
			},
			wantAdmin: true,
		},
		{
			name: "token admin only",
			claims: map[string][]string{
				patPrefix + ClaimRole: {RoleAdministrator},
			},
			wantAdmin: false,
		},
		{
			name: "user admin only",
			claims: map[string][]string{
				patUserPrefix + ClaimRole: {RoleAdministrator},
				patPrefix + "scope":       {"read"},
			},
			wantAdmin: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Principal{Username: "u", Claims: tt.claims}
			if !p.IsPAT() {
				t.Fatal("principal should be recognized as PAT")
			}
			c := NewAccessChecker(p)
			if c.IsAdmin() != tt.wantAdmin {
				t.Errorf("IsAdmin = %v, want %v", c.IsAdmin(), tt.wantAdmin)
			}
		})
	}
}

func TestPATUsesTokenClaimNamespace(t *testing.T) {
	p := Principal{
		Username: "u",
		Claims: map[string][]string{
			// The owning user may read /A/B, but the token was not
			// granted that scope; the token's namespace governs.
			patUserPrefix + ClaimCanReadCatalog: {"/A/B"},
			patPrefix + ClaimCanReadCatalog:     {"/C"},
		},
	}
	c := NewAccessChecker(p)
	if c.CanRead("/A/B", "carol", nil) {
		t.Error("PAT read /A/B through the user namespace; token grants must govern")
	}
	if !c.CanRead("/C", "carol", nil) {
		t.Error("PAT could not read /C despite a token grant")
	}
}

func TestCanWrite(t *testing.T) {
	c := NewAccessChecker(Principal{Username: "u", Claims: map[string][]string{
		ClaimCanWriteCatalog: {"^/W/.*"},
	}})
	if !c.CanWrite("/W/x", "carol", nil) {
		t.Error("write claim regex should match /W/x")
	}
	if c.CanWrite("/A/B", "carol", nil) {
		t.Error("write to /A/B without claim should be denied")
	}
	// Ownerless nodes are publicly readable but not publicly writable.
	if c.CanWrite("/A/B", "", nil) {
		t.Error("ownerless catalog must not be publicly writable")
	}
}
