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

// Package snapshot serializes the full in-memory leaderboard state to a
// single versioned file and restores it on startup. Writes go to a
// temporary file and are atomically renamed into place, the same
// write-tmp-then-rename pattern the teacher source uses for its
// leaderboard cache persistence files, so a crash mid-write never
// corrupts the last good snapshot.
//
// The body is a hand-written, explicitly versioned binary encoding, not
// a language-provided object-graph serializer: the schema must survive a
// from-scratch reimplementation in another language, which rules out
// gob.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// magic identifies a ringgrank snapshot file; schemaVersion lets future
// format revisions decide whether they can read an older file.
const (
	magic         uint32 = 0x52474c42 // "RGLB"
	schemaVersion uint32 = 1
)

// GameSnapshot captures one game's persisted leaderboard state: every
// entry in the all-time view, every entry in each configured sliding
// window view, and the window durations needed to rebuild the
// GameLeaderboardSet's configuration. The expiration queue itself is not
// part of the snapshot; it is reconstructed on load from window entry
// timestamps plus durations.
type GameSnapshot struct {
	GameID    uint64
	AllTime   []scoreentry.ScoreEntry
	Windows   map[string][]scoreentry.ScoreEntry
	Durations map[string]time.Duration
}

// Snapshot is the full persisted state of the engine at one point in
// time, plus the WAL timestamp up to which it is complete: on recovery,
// the WAL need only be replayed from LastTimestampMs forward.
type Snapshot struct {
	LastTimestampMs int64
	Games           map[uint64]GameSnapshot
}

// Empty returns a zero-value snapshot suitable as a recovery starting
// point when no snapshot file exists yet.
func Empty() Snapshot {
	return Snapshot{Games: make(map[uint64]GameSnapshot)}
}

// Write serializes snap to tmpPath, then atomically renames tmpPath to
// path. On any failure the temporary file is removed and the file at
// path, if any, is left untouched.
func Write(path, tmpPath string, snap Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0o755); err != nil {
		return fmt.Errorf("snapshot: create temp directory: %w", err)
	}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(f)
	if err = binary.Write(bw, binary.BigEndian, magic); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write magic: %w", err)
	}
	if err = binary.Write(bw, binary.BigEndian, schemaVersion); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write schema version: %w", err)
	}
	if err = encodeSnapshot(bw, snap); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err = bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: create target directory: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot at path. A missing file is not an
// error: it returns Empty(), since a fresh engine has no prior state.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return Snapshot{}, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	var gotMagic uint32
	if err := binary.Read(br, binary.BigEndian, &gotMagic); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read magic: %w", err)
	}
	if gotMagic != magic {
		return Snapshot{}, fmt.Errorf("snapshot: bad magic number %#x", gotMagic)
	}

	var version uint32
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read schema version: %w", err)
	}
	if version != schemaVersion {
		return Snapshot{}, fmt.Errorf("snapshot: unsupported schema version %d", version)
	}

	snap, err := decodeSnapshot(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Games == nil {
		snap.Games = make(map[uint64]GameSnapshot)
	}
	return snap, nil
}

// Wire format (big-endian throughout, following the magic+version header):
//
//	last_timestamp_ms   int64
//	game_count          uint32
//	game[game_count]:
//	    game_id         uint64
//	    all_time_count  uint32
//	    entry[all_time_count]
//	    window_count    uint32
//	    window[window_count]:
//	        key             string
//	        duration_ns     int64
//	        entry_count     uint32
//	        entry[entry_count]
//
// entry is (user_id uint64, game_id uint64, score int64, timestamp_ms int64).
// string is (length uint32, utf8 bytes).
func encodeSnapshot(w io.Writer, snap Snapshot) error {
	if err := writeInt64(w, snap.LastTimestampMs); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(snap.Games))); err != nil {
		return err
	}

	for gameID, gs := range snap.Games {
		if err := writeUint64(w, gameID); err != nil {
			return err
		}
		if err := writeEntries(w, gs.AllTime); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(gs.Windows))); err != nil {
			return err
		}
		for key, entries := range gs.Windows {
			if err := writeString(w, key); err != nil {
				return err
			}
			if err := writeInt64(w, int64(gs.Durations[key])); err != nil {
				return err
			}
			if err := writeEntries(w, entries); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeSnapshot(r io.Reader) (Snapshot, error) {
	lastTs, err := readInt64(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("last timestamp: %w", err)
	}
	gameCount, err := readUint32(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("game count: %w", err)
	}

	games := make(map[uint64]GameSnapshot, gameCount)
	for i := uint32(0); i < gameCount; i++ {
		gameID, err := readUint64(r)
		if err != nil {
			return Snapshot{}, fmt.Errorf("game id: %w", err)
		}
		allTime, err := readEntries(r)
		if err != nil {
			return Snapshot{}, fmt.Errorf("game %d all-time entries: %w", gameID, err)
		}
		windowCount, err := readUint32(r)
		if err != nil {
			return Snapshot{}, fmt.Errorf("game %d window count: %w", gameID, err)
		}

		windows := make(map[string][]scoreentry.ScoreEntry, windowCount)
		durations := make(map[string]time.Duration, windowCount)
		for j := uint32(0); j < windowCount; j++ {
			key, err := readString(r)
			if err != nil {
				return Snapshot{}, fmt.Errorf("game %d window %d key: %w", gameID, j, err)
			}
			durNs, err := readInt64(r)
			if err != nil {
				return Snapshot{}, fmt.Errorf("game %d window %q duration: %w", gameID, key, err)
			}
			entries, err := readEntries(r)
			if err != nil {
				return Snapshot{}, fmt.Errorf("game %d window %q entries: %w", gameID, key, err)
			}
			windows[key] = entries
			durations[key] = time.Duration(durNs)
		}

		games[gameID] = GameSnapshot{
			GameID:    gameID,
			AllTime:   allTime,
			Windows:   windows,
			Durations: durations,
		}
	}

	return Snapshot{LastTimestampMs: lastTs, Games: games}, nil
}

func writeEntries(w io.Writer, entries []scoreentry.ScoreEntry) error {
	if err := writeUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeUint64(w, e.UserID); err != nil {
			return err
		}
		if err := writeUint64(w, e.GameID); err != nil {
			return err
		}
		if err := writeInt64(w, e.Score); err != nil {
			return err
		}
		if err := writeInt64(w, e.TimestampMs); err != nil {
			return err
		}
	}
	return nil
}

func readEntries(r io.Reader) ([]scoreentry.ScoreEntry, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	entries := make([]scoreentry.ScoreEntry, count)
	for i := uint32(0); i < count; i++ {
		userID, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d user id: %w", i, err)
		}
		gameID, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d game id: %w", i, err)
		}
		score, err := readInt64(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d score: %w", i, err)
		}
		ts, err := readInt64(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d timestamp: %w", i, err)
		}
		entries[i] = scoreentry.ScoreEntry{UserID: userID, GameID: gameID, Score: score, TimestampMs: ts}
	}
	return entries, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeUint32(w io.Writer, v uint32) error { return binary.Write(w, binary.BigEndian, v) }
func writeUint64(w io.Writer, v uint64) error { return binary.Write(w, binary.BigEndian, v) }
func writeInt64(w io.Writer, v int64) error   { return binary.Write(w, binary.BigEndian, v) }

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}
