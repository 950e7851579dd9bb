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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/wal"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "./data/wal/scores", cfg.WALPath)
	assert.Equal(t, 7880, cfg.HTTPPort)
	assert.Equal(t, int64(3_600_000), cfg.SnapshotIntervalMs)
	assert.Equal(t, wal.FlushOnly, cfg.Durability())
	assert.Equal(t, time.Hour, cfg.SnapshotInterval())

	durations, err := cfg.WindowDurations()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, durations["24h"])
}

func TestParseArgs_FlagsOverrideDefaults(t *testing.T) {
	cfg := ParseArgs(zap.NewNop(), []string{"ringgrankd", "--http_port", "9090", "--wal_durability", "flush-and-sync"})
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, wal.FlushAndSync, cfg.Durability())
}

func TestParseArgs_LoadsYAMLFileThenFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: 8000\nwal_durability: flush-and-sync\n"), 0o644))

	cfg := ParseArgs(zap.NewNop(), []string{"ringgrankd", "--config", path, "--http_port", "8888"})
	assert.Equal(t, 8888, cfg.HTTPPort)
	assert.Equal(t, wal.FlushAndSync, cfg.Durability())
}

func TestWindowDurations_RejectsInvalidDuration(t *testing.T) {
	cfg := NewConfig()
	cfg.DefaultWindows = map[string]string{"bad": "not-a-duration"}
	_, err := cfg.WindowDurations()
	require.Error(t, err)
}
