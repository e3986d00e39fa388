// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads server configuration from the environment and
// resolves the room's tool-surface mode.
//
// Priority: environment variables (MASC_ prefix) > defaults. A .env file,
// when present, is loaded into the environment by the CLI before Load runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the server needs to start.
type Config struct {
	// Storage
	StorageType string `mapstructure:"storage_type"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresURL string `mapstructure:"postgres_url"`
	MySQLDSN    string `mapstructure:"mysql_dsn"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	BoltPath    string `mapstructure:"bolt_path"`

	// Identity
	Root        string `mapstructure:"root"`
	BasePath    string `mapstructure:"base_path"` // alias for root
	ClusterName string `mapstructure:"cluster_name"`
	Room        string `mapstructure:"room"`

	// Transport
	Port       int    `mapstructure:"port"`
	Token      string `mapstructure:"token"`
	TokensFile string `mapstructure:"tokens_file"`

	// Security
	EncryptionKey string `mapstructure:"encryption_key"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Intervals, in seconds
	HeartbeatTTL      float64 `mapstructure:"heartbeat_ttl"`
	ZombieTTL         float64 `mapstructure:"zombie_ttl"`
	HandoffTTL        float64 `mapstructure:"handoff_ttl"`
	HandoffConsumeTTL float64 `mapstructure:"handoff_consume_ttl"`
	InterruptTTL      float64 `mapstructure:"interrupt_ttl"`
	DrainTimeout      float64 `mapstructure:"drain_timeout"`
	LockTTL           float64 `mapstructure:"lock_ttl"` // 0 = indefinite
	Tempo             float64 `mapstructure:"tempo"`

	ConcurrencyTarget int `mapstructure:"concurrency_target"`

	// Drift detection
	DriftThreshold     float64 `mapstructure:"drift_threshold"`
	DriftJaccardWeight float64 `mapstructure:"drift_jaccard_weight"`
	DriftCosineWeight  float64 `mapstructure:"drift_cosine_weight"`

	// Rate limiting
	RateCapacity     int     `mapstructure:"rate_capacity"`
	RateRefillPerSec float64 `mapstructure:"rate_refill_per_s"`

	// Tool surface
	Mode string `mapstructure:"mode"`
}

// defaults registers every key so AutomaticEnv picks the variable up even
// when no default makes sense.
func defaults(v *viper.Viper) {
	v.SetDefault("storage_type", "memory")
	v.SetDefault("redis_url", "")
	v.SetDefault("postgres_url", "")
	v.SetDefault("mysql_dsn", "")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("bolt_path", "")

	v.SetDefault("root", "")
	v.SetDefault("base_path", "")
	v.SetDefault("cluster_name", "")
	v.SetDefault("room", "main")

	v.SetDefault("port", 8935)
	v.SetDefault("token", "")
	v.SetDefault("tokens_file", "")
	v.SetDefault("encryption_key", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("heartbeat_ttl", 120)
	v.SetDefault("zombie_ttl", 600)
	v.SetDefault("handoff_ttl", 1800)
	v.SetDefault("handoff_consume_ttl", 600)
	v.SetDefault("interrupt_ttl", 3600)
	v.SetDefault("drain_timeout", 30)
	v.SetDefault("lock_ttl", 0)
	v.SetDefault("tempo", 30)
	v.SetDefault("concurrency_target", 8)

	v.SetDefault("drift_threshold", 0.85)
	v.SetDefault("drift_jaccard_weight", 0.5)
	v.SetDefault("drift_cosine_weight", 0.5)

	v.SetDefault("rate_capacity", 120)
	v.SetDefault("rate_refill_per_s", 2)

	v.SetDefault("mode", "default")
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MASC")
	v.AutomaticEnv()
	defaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	// MASC_BASE_PATH is the historical alias for MASC_ROOT.
	if c.Root == "" {
		c.Root = c.BasePath
	}
	if c.Root == "" {
		c.Root = ".masc"
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", c.Root, err)
	}
	c.Root = abs

	if c.ClusterName == "" {
		// The cluster is named after the directory the root lives in, so
		// two repos with a .masc each get distinct clusters.
		c.ClusterName = filepath.Base(filepath.Dir(c.Root))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid MASC_LOG_LEVEL %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid MASC_LOG_FORMAT %q", c.LogFormat)
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("MASC_ENCRYPTION_KEY must be 64 hex characters, got %d", len(c.EncryptionKey))
	}
	return nil
}

// Tokens resolves the full bearer-token allow list: MASC_TOKEN plus the
// lines of MASC_TOKENS_FILE. Blank lines and #-comments are skipped.
func (c *Config) Tokens() ([]string, error) {
	var tokens []string
	if c.Token != "" {
		tokens = append(tokens, c.Token)
	}
	if c.TokensFile == "" {
		return tokens, nil
	}
	data, err := os.ReadFile(c.TokensFile)
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens, nil
}

// ConfigPath is the location of the persisted room config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Root, "config.json")
}

// ModesPath is the location of the optional mode-preset file.
func (c *Config) ModesPath() string {
	return filepath.Join(c.Root, "modes.yaml")
}
