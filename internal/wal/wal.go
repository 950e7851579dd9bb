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

// Package wal implements the append-only write-ahead log of score
// mutations: a textual, line-oriented record format, a configurable
// flush/sync durability policy, rotation on snapshot, and sequential
// replay. The append-mode file handling is grounded on the teacher
// source's NewJSONFileLogger/NewRotatingJSONFileLogger
// (server/logger.go), which already opens a log file with
// os.O_APPEND|os.O_CREATE|os.O_WRONLY for a single serialized writer.
package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// Durability selects whether Append additionally fsyncs to durable media.
type Durability int

const (
	// FlushOnly writes to the OS page cache but does not fsync. A clean
	// process crash loses nothing; an OS/host crash may lose records
	// written since the last OS-level flush. This is the default.
	FlushOnly Durability = iota
	// FlushAndSync fsyncs after every append.
	FlushAndSync
)

// WAL is the active write-ahead log for one process. Appends are
// serialized by w.mu so that log order equals the order in which Append
// calls return successfully to their callers.
type WAL struct {
	mu       sync.Mutex
	path     string
	mode     Durability
	logger   *zap.Logger
	file     *os.File
	buffered *bufio.Writer
}

// Open opens (creating if necessary) the active log at path for
// appending.
func Open(logger *zap.Logger, path string, mode Durability) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open active log: %w", err)
	}

	return &WAL{
		path:     path,
		mode:     mode,
		logger:   logger,
		file:     f,
		buffered: bufio.NewWriter(f),
	}, nil
}

// Append serializes entry as one record and writes it to the active log.
// It flushes the write buffer to the OS before returning and, when mode
// is FlushAndSync, additionally fsyncs.
func (w *WAL) Append(entry scoreentry.ScoreEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf("%d,%d,%d,%d\n", entry.TimestampMs, entry.GameID, entry.UserID, entry.Score)
	if _, err := w.buffered.WriteString(line); err != nil {
		return fmt.Errorf("wal: write record: %w", err)
	}
	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("wal: flush record: %w", err)
	}
	if w.mode == FlushAndSync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync record: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the active log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buffered.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Replay reads the active log sequentially from the start and invokes
// applyFn for every record with TimestampMs >= fromTimestampMs. A
// malformed line is a hard failure that aborts recovery, per the spec's
// RecoveryCorruption contract.
func Replay(path string, fromTimestampMs int64, applyFn func(scoreentry.ScoreEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("wal: open for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, err := parseRecord(line)
		if err != nil {
			return fmt.Errorf("wal: malformed record at line %d: %w", lineNo, err)
		}
		if entry.TimestampMs < fromTimestampMs {
			continue
		}
		if err := applyFn(entry); err != nil {
			return fmt.Errorf("wal: apply record at line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wal: scan: %w", err)
	}
	return nil
}

// Rotate atomically renames w's active log (the path it was opened with)
// to archivePath,
// replacing any prior archive, then ensures a fresh empty active log is
// ready for further appends. Called exclusively by the snapshotter after
// a successful snapshot write.
func Rotate(w *WAL, archivePath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("wal: flush before rotate: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close before rotate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return fmt.Errorf("wal: create archive directory: %w", err)
	}
	if err := os.Rename(w.path, archivePath); err != nil {
		return fmt.Errorf("wal: rename to archive: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("wal: reopen active log: %w", err)
	}
	w.file = f
	w.buffered = bufio.NewWriter(f)

	w.logger.Info("wal rotated", zap.String("archive_path", archivePath))
	return nil
}

func parseRecord(line string) (scoreentry.ScoreEntry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return scoreentry.ScoreEntry{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return scoreentry.ScoreEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	gameID, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return scoreentry.ScoreEntry{}, fmt.Errorf("game_id: %w", err)
	}
	userID, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return scoreentry.ScoreEntry{}, fmt.Errorf("user_id: %w", err)
	}
	score, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return scoreentry.ScoreEntry{}, fmt.Errorf("score: %w", err)
	}

	return scoreentry.ScoreEntry{
		UserID:      userID,
		GameID:      gameID,
		Score:       score,
		TimestampMs: ts,
	}, nil
}
