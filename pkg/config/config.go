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

// Package config loads Nexus's settings:
// JSON or INI, with every key addressable via the environment under the
// "NEXUS_" prefix.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Paths is the settings section material to the data plane core
//: the well-known root directories.
type Paths struct {
	Cache     string `mapstructure:"cache"`
	Catalogs  string `mapstructure:"catalogs"`
	Artifacts string `mapstructure:"artifacts"`
	Packages  string `mapstructure:"packages"`
	Config    string `mapstructure:"config"`
}

// Settings is the root settings document. Only Paths is material to the
// core; additional sections (transport, auth, ...) are out of scope but
// the loader itself stays general.
type Settings struct {
	Paths                        Paths   `mapstructure:"paths"`
	TotalBufferMemoryConsumption int64   `mapstructure:"totalBufferMemoryConsumption"`
	AggregationNaNThreshold      float64 `mapstructure:"aggregationNaNThreshold"`
	CachePattern                 string  `mapstructure:"cachePattern"`
}

// DefaultTotalBufferMemoryConsumption is used when a settings document
// omits totalBufferMemoryConsumption: 256 MiB.
const DefaultTotalBufferMemoryConsumption = int64(256 << 20)

// Load reads settings from configPath (a JSON or INI file, autodetected
// by extension) merged with "NEXUS_"-prefixed environment variables,
// for deployment overrides. configPath may be empty, in which case
// only the environment and built-in defaults apply.
func Load(configPath string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("totalBufferMemoryConsumption", DefaultTotalBufferMemoryConsumption)
	v.SetDefault("aggregationNaNThreshold", 0.99)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode settings: %w", err)
	}
	return s, nil
}
