// Copyright 2018 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads process configuration from an optional YAML file
// followed by flag overrides, the same two-stage shape as the teacher
// source's ParseArgs (server/config.go): read --config first, then let
// command-line flags win. The teacher's custom reflection-based flag
// binder (nakama/pkg/flags) isn't part of this module's dependency
// surface, so flags are bound explicitly per field with the standard
// library's flag.FlagSet instead.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/olifarhaan/ringgrank/internal/logging"
	"github.com/olifarhaan/ringgrank/internal/wal"
)

// Config is the full set of process-level knobs.
type Config struct {
	WALPath            string            `yaml:"wal_path"`
	WALArchivePath     string            `yaml:"wal_archive_path"`
	SnapshotPath       string            `yaml:"snapshot_path"`
	SnapshotTmpPath    string            `yaml:"snapshot_tmp_path"`
	SnapshotIntervalMs int64             `yaml:"snapshot_interval_ms"`
	WALDurability      string            `yaml:"wal_durability"`
	HTTPPort           int               `yaml:"http_port"`
	DefaultWindows     map[string]string `yaml:"default_windows"`
	Logger             *logging.Config   `yaml:"logger"`
}

// NewConfig returns the documented defaults.
func NewConfig() *Config {
	return &Config{
		WALPath:            "./data/wal/scores",
		WALArchivePath:     "./data/wal/scores.archive",
		SnapshotPath:       "./data/snapshot/leaderboard",
		SnapshotTmpPath:    "./data/snapshot/leaderboard.tmp",
		SnapshotIntervalMs: 3_600_000,
		WALDurability:      "flush-only",
		HTTPPort:           7880,
		DefaultWindows:     map[string]string{"24h": "24h"},
		Logger:             logging.DefaultConfig(),
	}
}

// ParseArgs loads an optional "--config <path>" YAML file, then applies
// flag overrides on top, mirroring server/config.go's ParseArgs.
func ParseArgs(logger *zap.Logger, args []string) *Config {
	cfg := NewConfig()

	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			data, err := os.ReadFile(args[i+1])
			if err != nil {
				logger.Error("could not read config file, using defaults", zap.Error(err))
				break
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				logger.Error("could not parse config file, using defaults", zap.Error(err))
			}
			break
		}
	}

	flagSet := flag.NewFlagSet("ringgrankd", flag.ContinueOnError)
	var configPath string
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file, applied before flag overrides")
	flagSet.StringVar(&cfg.WALPath, "wal_path", cfg.WALPath, "path to the active write-ahead log")
	flagSet.StringVar(&cfg.WALArchivePath, "wal_archive_path", cfg.WALArchivePath, "path the WAL is rotated to after a snapshot")
	flagSet.StringVar(&cfg.SnapshotPath, "snapshot_path", cfg.SnapshotPath, "path to the current snapshot file")
	flagSet.StringVar(&cfg.SnapshotTmpPath, "snapshot_tmp_path", cfg.SnapshotTmpPath, "temp path used while writing a new snapshot")
	flagSet.Int64Var(&cfg.SnapshotIntervalMs, "snapshot_interval_ms", cfg.SnapshotIntervalMs, "interval between periodic snapshots, in milliseconds")
	flagSet.StringVar(&cfg.WALDurability, "wal_durability", cfg.WALDurability, "flush-only or flush-and-sync")
	flagSet.IntVar(&cfg.HTTPPort, "http_port", cfg.HTTPPort, "HTTP listen port")
	flagSet.StringVar(&cfg.Logger.Level, "logger.level", cfg.Logger.Level, "log level: debug, info, warn, error")
	flagSet.StringVar(&cfg.Logger.File, "logger.file", cfg.Logger.File, "log file path; empty means console only")

	if len(args) > 0 {
		if err := flagSet.Parse(args[1:]); err != nil {
			logger.Error("could not parse command line arguments - ignoring overrides", zap.Error(err))
		}
	}

	return cfg
}

// SnapshotInterval returns SnapshotIntervalMs as a time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMs) * time.Millisecond
}

// Durability translates WALDurability into a wal.Durability value. An
// unrecognized string defaults to wal.FlushOnly.
func (c *Config) Durability() wal.Durability {
	if c.WALDurability == "flush-and-sync" {
		return wal.FlushAndSync
	}
	return wal.FlushOnly
}

// WindowDurations parses DefaultWindows into key -> time.Duration.
func (c *Config) WindowDurations() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(c.DefaultWindows))
	for key, raw := range c.DefaultWindows {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: default window %q has invalid duration %q: %w", key, raw, err)
		}
		out[key] = d
	}
	return out, nil
}
