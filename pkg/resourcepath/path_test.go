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

package resourcepath

import "testing"

func TestParseOriginal(t *testing.T) {
	p, err := Parse("/A/B/temperature/10_ms")
	if err != nil {
		t.Fatal(err)
	}
	if p.CatalogID != "/A/B" || p.Resource != "temperature" {
		t.Fatalf("got catalog=%q resource=%q", p.CatalogID, p.Resource)
	}
	if p.Kind != Original || p.HasBase {
		t.Fatalf("expected Original with no base, got kind=%v hasBase=%v", p.Kind, p.HasBase)
	}
}

func TestParseAggregationRequiresBase(t *testing.T) {
	if _, err := Parse("/A/B/temperature/1_min_mean"); err == nil {
		t.Fatal("expected error: mean representation without #base=")
	}
}

func TestParseAggregationWithBase(t *testing.T) {
	p, err := Parse("/A/B/temperature/1_min_mean#base=10_s")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != Mean || !p.HasBase {
		t.Fatalf("got kind=%v hasBase=%v", p.Kind, p.HasBase)
	}
	if p.BaseSamplePeriod.String() != "10_s" {
		t.Fatalf("got base=%v", p.BaseSamplePeriod)
	}
}

func TestParseAggregationNonMultipleRejected(t *testing.T) {
	if _, err := Parse("/A/B/x/7_s_mean#base=10_s"); err == nil {
		t.Fatal("expected error: 7s is not a multiple of 10s")
	}
}

func TestParseResampleRequiresBaseDivides(t *testing.T) {
	if _, err := Parse("/A/B/x/3_s_resampled#base=10_s"); err == nil {
		t.Fatal("expected error: 10s is not a multiple of 3s")
	}
	p, err := Parse("/A/B/x/2_s_resampled#base=10_s")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != Resampled {
		t.Fatalf("got kind=%v", p.Kind)
	}
}

func TestParseMeanPolarDeg(t *testing.T) {
	p, err := Parse("/A/B/wind/1_h_mean_polar_deg#base=1_min")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != MeanPolarDeg {
		t.Fatalf("got kind=%v, want MeanPolarDeg", p.Kind)
	}
}

func TestParseBitwiseKinds(t *testing.T) {
	for _, lit := range []string{"min_bitwise", "max_bitwise"} {
		path := "/A/B/flags/1_h_" + lit + "#base=1_min"
		p, err := Parse(path)
		if err != nil {
			t.Fatalf("Parse(%q): %v", path, err)
		}
		want := kindNames[lit]
		if p.Kind != want {
			t.Errorf("Parse(%q).Kind = %v, want %v", path, p.Kind, want)
		}
	}
}

func TestOriginalMustNotCarryBase(t *testing.T) {
	if _, err := Parse("/A/B/x/10_ms#base=1_ms"); err == nil {
		t.Fatal("expected error: Original must not carry #base=")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "no-leading-slash/x/10_ms", "/A/B/x/not-a-period", "/A/B/x"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error", in)
		}
	}
}

func TestRoundTripString(t *testing.T) {
	for _, in := range []string{
		"/A/B/temperature/10_ms",
		"/A/B/temperature/1_min_mean#base=10_s",
		"/A/B/wind/1_h_mean_polar_deg#base=1_min",
		"/A/B/x/2_s_resampled#base=10_s",
	} {
		p, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := p.String(); got != in {
			t.Errorf("round trip %q -> %q", in, got)
		}
	}
}
