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

// Package manager implements the LeaderboardManager façade: the single
// owner of every GameLeaderboardSet, the expiration queue and worker,
// the write-ahead log, and the snapshotter, wiring startup recovery and
// graceful shutdown the way the teacher source's central server struct
// wires its subsystems together, with bounded-grace-period shutdown
// modeled on server/shutdown_test.go.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/apperr"
	"github.com/olifarhaan/ringgrank/internal/expireq"
	"github.com/olifarhaan/ringgrank/internal/gameset"
	"github.com/olifarhaan/ringgrank/internal/leaderboard"
	"github.com/olifarhaan/ringgrank/internal/scoreentry"
	"github.com/olifarhaan/ringgrank/internal/snapshot"
	"github.com/olifarhaan/ringgrank/internal/wal"
)

// Config supplies everything Manager needs beyond the open WAL.
type Config struct {
	SnapshotPath     string
	SnapshotTmpPath  string
	WALArchivePath   string
	SnapshotInterval time.Duration
	DefaultWindows   map[string]time.Duration
	// Now overrides the wall clock source; nil means time.Now.
	Now func() time.Time
}

// Manager is the top-level façade described by the spec's
// LeaderboardManager: it owns the game map, the ExpirationQueue, the
// WAL, and the Snapshotter, and exposes record/query/recovery/shutdown.
type Manager struct {
	logger *zap.Logger
	cfg    Config
	now    func() time.Time

	mu    sync.RWMutex
	games map[uint64]*gameset.GameLeaderboardSet

	// barrier separates ingest from the snapshotter's serialization pass.
	// RecordScore holds it for read (many concurrent ingests run
	// together); takeSnapshot holds it for write across the whole
	// serialize -> Write -> Rotate sequence, so no WAL record applied
	// during that pass can fall into the gap between "already
	// serialized" and "already rotated out of the active log".
	barrier sync.RWMutex

	wal   *wal.WAL
	queue *expireq.Queue

	worker    *expireq.Worker
	scheduler *snapshot.Scheduler
}

// New constructs a Manager, recovering prior state from the configured
// snapshot file and WAL before returning. Recovery order follows the
// spec exactly: load the snapshot (if any), rebind transient expiration
// tickets for the views it restores, then replay the WAL from the
// snapshot's last included timestamp.
func New(logger *zap.Logger, w *wal.WAL, walPath string, cfg Config) (*Manager, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		logger: logger,
		cfg:    cfg,
		now:    now,
		games:  make(map[uint64]*gameset.GameLeaderboardSet),
		wal:    w,
		queue:  expireq.New(),
	}

	snap, err := snapshot.Load(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRecoveryCorruption, err)
	}
	m.restoreSnapshot(snap)

	if err := wal.Replay(walPath, snap.LastTimestampMs, m.applyWithoutWAL); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRecoveryCorruption, err)
	}

	m.worker = expireq.NewWorker(logger, m.queue, m.lookupView, now)
	m.scheduler = snapshot.NewScheduler(logger, cfg.SnapshotInterval, m.takeSnapshot)

	return m, nil
}

// restoreSnapshot repopulates the game map and re-arms expiration
// tickets for every windowed entry the snapshot carried. The queue
// itself was never persisted (§4.6): tickets are rebuilt here from each
// entry's own timestamp plus its window's duration.
func (m *Manager) restoreSnapshot(snap snapshot.Snapshot) {
	for gameID, gs := range snap.Games {
		set := gameset.New(gameID)
		for key, dur := range gs.Durations {
			set.ConfigureWindow(key, dur)
		}
		for _, e := range gs.AllTime {
			set.AllTime().AddOrUpdate(e)
		}

		views := set.Windows()
		for key, entries := range gs.Windows {
			view, ok := views[key]
			if !ok {
				continue
			}
			dur := gs.Durations[key]
			for _, e := range entries {
				view.AddOrUpdate(e)
				m.queue.Push(expireq.Ticket{
					DueAtMs:   e.TimestampMs + dur.Milliseconds(),
					GameID:    gameID,
					WindowKey: key,
					Entry:     e,
				})
			}
		}

		m.games[gameID] = set
	}
}

// Start launches the background expiration worker and snapshot
// scheduler.
func (m *Manager) Start(ctx context.Context) {
	m.worker.Start(ctx)
	m.scheduler.Start(ctx)
}

// Shutdown stops the expiration worker (bounded by workerTimeout), then
// stops the snapshot scheduler (waiting at most schedulerTimeout for its
// loop to exit) and runs one final synchronous snapshot, which is not
// bounded by either timeout, then closes the WAL. Order
// matters: per §9, the worker stops first, then the final snapshot runs,
// then the WAL is closed.
func (m *Manager) Shutdown(workerTimeout, schedulerTimeout time.Duration) error {
	m.worker.Stop(workerTimeout)
	if err := m.scheduler.Stop(schedulerTimeout); err != nil {
		m.logger.Error("final snapshot failed during shutdown", zap.Error(err))
	}
	return m.wal.Close()
}

// RecordScore validates, durably logs, and applies entry. It returns
// apperr.ErrInvalidScore for a negative score or future timestamp, and
// apperr.ErrPersistenceFailure if the WAL append fails (in which case
// the in-memory mutation is never applied).
func (m *Manager) RecordScore(entry scoreentry.ScoreEntry) error {
	if entry.Score < 0 || entry.TimestampMs > m.now().UnixMilli() {
		return apperr.ErrInvalidScore
	}

	m.barrier.RLock()
	defer m.barrier.RUnlock()

	if err := m.wal.Append(entry); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistenceFailure, err)
	}

	set := m.getOrCreateGameSet(entry.GameID)
	set.Apply(entry, m.now(), m.emitTicket)
	return nil
}

// applyWithoutWAL is used during WAL replay: it skips re-appending to
// the log and uses the entry's own timestamp as the logical "now"
// against which window eligibility is recomputed, per §4.5.
func (m *Manager) applyWithoutWAL(entry scoreentry.ScoreEntry) error {
	set := m.getOrCreateGameSet(entry.GameID)
	set.Apply(entry, time.UnixMilli(entry.TimestampMs), m.emitTicket)
	return nil
}

func (m *Manager) emitTicket(windowKey string, dueAtMs int64, entry scoreentry.ScoreEntry) {
	m.queue.Push(expireq.Ticket{DueAtMs: dueAtMs, GameID: entry.GameID, WindowKey: windowKey, Entry: entry})
}

// GetGameSet returns the GameLeaderboardSet for gameID, or false if no
// score has ever been recorded for it (and it was not present in the
// restored snapshot).
func (m *Manager) GetGameSet(gameID uint64) (*gameset.GameLeaderboardSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.games[gameID]
	return s, ok
}

// getOrCreateGameSet is the race-free obtain-or-create required by
// §4.5: at most one GameLeaderboardSet is ever created per game id,
// pre-configured with the process's default window durations.
func (m *Manager) getOrCreateGameSet(gameID uint64) *gameset.GameLeaderboardSet {
	m.mu.RLock()
	if s, ok := m.games[gameID]; ok {
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.games[gameID]; ok {
		return s
	}

	s := gameset.New(gameID)
	for key, dur := range m.cfg.DefaultWindows {
		s.ConfigureWindow(key, dur)
	}
	m.games[gameID] = s
	return s
}

func (m *Manager) lookupView(gameID uint64, windowKey string) (*leaderboard.Leaderboard, bool) {
	set, ok := m.GetGameSet(gameID)
	if !ok {
		return nil, false
	}
	return set.GetView(windowKey)
}

// takeSnapshot builds a Snapshot from the current game map, writes it
// atomically, and rotates the WAL on success. It is the scheduler's
// TakeFunc, called both on the periodic timer and once more on shutdown.
//
// It holds the manager's barrier for write for the entire serialize ->
// Write -> Rotate sequence, so RecordScore cannot run concurrently with
// it: every ingest either completed (and is reflected below) or is
// blocked until this pass finishes (and lands in the fresh active log
// after rotation). Without this, an ingest applied between the game map
// being copied and the WAL being rotated would be captured in neither
// the snapshot nor the post-rotation active log.
func (m *Manager) takeSnapshot() error {
	m.barrier.Lock()
	defer m.barrier.Unlock()

	m.mu.RLock()
	gameIDs := make([]uint64, 0, len(m.games))
	sets := make([]*gameset.GameLeaderboardSet, 0, len(m.games))
	for id, s := range m.games {
		gameIDs = append(gameIDs, id)
		sets = append(sets, s)
	}
	m.mu.RUnlock()

	// lastTs is the newest TimestampMs among the all-time entries captured
	// below (0 when there are none). Because the barrier excludes
	// concurrent ingest, rotation moves every record applied so far out of
	// the active log, so after rotation the active log holds only records
	// ingested after this pass; replay-from-lastTs on recovery applies each
	// of them whose TimestampMs >= lastTs. A later record whose TimestampMs
	// is below lastTs is skipped by that replay.
	var lastTs int64
	games := make(map[uint64]snapshot.GameSnapshot, len(sets))
	for i, s := range sets {
		allTime := s.AllTime().All()
		for _, e := range allTime {
			if e.TimestampMs > lastTs {
				lastTs = e.TimestampMs
			}
		}
		windows := s.Windows()
		windowEntries := make(map[string][]scoreentry.ScoreEntry, len(windows))
		for key, view := range windows {
			windowEntries[key] = view.All()
		}
		games[gameIDs[i]] = snapshot.GameSnapshot{
			GameID:    gameIDs[i],
			AllTime:   allTime,
			Windows:   windowEntries,
			Durations: s.WindowDurations(),
		}
	}

	snap := snapshot.Snapshot{LastTimestampMs: lastTs, Games: games}
	if err := snapshot.Write(m.cfg.SnapshotPath, m.cfg.SnapshotTmpPath, snap); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistenceFailure, err)
	}

	if err := wal.Rotate(m.wal, m.cfg.WALArchivePath); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistenceFailure, err)
	}
	return nil
}
