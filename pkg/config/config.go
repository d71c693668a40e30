// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes the YAML configuration file a replisync client
// is started with, the way the teacher's cmd servers read a YAML config
// rather than scattering os.Getenv calls through the code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/replisync/pkg/logging"
)

// Config is the top-level shape decoded from the config file.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Replicator ReplicatorConfig `yaml:"replicator"`
	Mutator    MutatorConfig    `yaml:"mutator"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Sentry     SentryConfig     `yaml:"sentry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReplicatorConfig configures pkg/replicator.
type ReplicatorConfig struct {
	BaseQuery    map[string]any `yaml:"baseQuery"`
	UseUpdatedAt bool           `yaml:"useUpdatedAt"`
	PageSize     int            `yaml:"pageSize"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig configures the backoff wrapped around Replicator.Connect.
type ReconnectConfig struct {
	InitialIntervalMS int    `yaml:"initialIntervalMs"`
	MaxIntervalMS     int    `yaml:"maxIntervalMs"`
	MaxElapsedTimeMS  int    `yaml:"maxElapsedTimeMs"`
	MaxRetries        uint64 `yaml:"maxRetries"`
}

// MutatorConfig configures pkg/mutator.
type MutatorConfig struct {
	TimeoutMS     int  `yaml:"timeoutMs"`
	MintShortUUID bool `yaml:"mintShortUuid"`
	PaginateDefault int `yaml:"paginateDefault"`
	PaginateMax     int `yaml:"paginateMax"`
}

// PersistenceConfig selects and configures the queue-persistence backend.
type PersistenceConfig struct {
	// Backend is "memory" (default) or "sqlite".
	Backend  string `yaml:"backend"`
	SQLitePath string `yaml:"sqlitePath"`
}

// SentryConfig configures optional error reporting.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
}

// MetricsConfig configures the Prometheus /metrics surface.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and decodes a YAML config file at path, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a Config with every field set to its production
// default, suitable as a base for yaml.Unmarshal or for tests/demo runs
// that don't read a file at all.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: string(logging.ProductionLevel), Format: string(logging.FormatPretty)},
		Replicator: ReplicatorConfig{
			UseUpdatedAt: true,
			PageSize:     100,
			Reconnect: ReconnectConfig{
				InitialIntervalMS: 500,
				MaxIntervalMS:     30_000,
				MaxRetries:        0,
			},
		},
		Mutator: MutatorConfig{
			TimeoutMS:       1500,
			PaginateDefault: 25,
			PaginateMax:     200,
		},
		Persistence: PersistenceConfig{Backend: "memory"},
		Metrics:     MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Timeout returns Mutator.TimeoutMS as a time.Duration.
func (c MutatorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Durations converts the millisecond fields into time.Duration for the
// replicator.ReconnectConfig they configure.
func (c ReconnectConfig) Durations() (initial, max, elapsed time.Duration) {
	return time.Duration(c.InitialIntervalMS) * time.Millisecond,
		time.Duration(c.MaxIntervalMS) * time.Millisecond,
		time.Duration(c.MaxElapsedTimeMS) * time.Millisecond
}
