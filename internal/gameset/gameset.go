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

// Package gameset holds the per-game container of ranking views: one
// all-time Leaderboard plus a configured set of sliding-window views.
package gameset

import (
	"sync"
	"time"

	"github.com/olifarhaan/ringgrank/internal/leaderboard"
	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// DefaultWindowKey and DefaultWindowDuration are pre-configured on every
// newly created GameLeaderboardSet.
const DefaultWindowKey = "24h"

var DefaultWindowDuration = 24 * time.Hour

// EmitTicket is called once per eligible window when an entry is applied,
// so the set never needs to hold a reference back to a global expiration
// queue. This one-way wiring replaces the teacher source's cyclic
// ownership between a leaderboard and its scheduler: the caller (the
// manager façade) owns the queue and passes this callback in.
type EmitTicket func(windowKey string, dueAtMs int64, entry scoreentry.ScoreEntry)

// GameLeaderboardSet is the per-game container of views.
type GameLeaderboardSet struct {
	GameID uint64

	allTime *leaderboard.Leaderboard

	mu        sync.RWMutex
	windows   map[string]*leaderboard.Leaderboard
	durations map[string]time.Duration
}

// New returns a GameLeaderboardSet pre-configured with the default "24h"
// window.
func New(gameID uint64) *GameLeaderboardSet {
	s := &GameLeaderboardSet{
		GameID:    gameID,
		allTime:   leaderboard.New(),
		windows:   make(map[string]*leaderboard.Leaderboard),
		durations: make(map[string]time.Duration),
	}
	s.ConfigureWindow(DefaultWindowKey, DefaultWindowDuration)
	return s
}

// ConfigureWindow is idempotent: it creates an empty Leaderboard for key
// if one does not already exist, and always (re)binds the duration.
func (s *GameLeaderboardSet) ConfigureWindow(key string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[key]; !ok {
		s.windows[key] = leaderboard.New()
	}
	s.durations[key] = duration
}

// GetView returns the all-time Leaderboard when key is empty, or the
// windowed Leaderboard for key. ok is false when key is non-empty and no
// such window is configured.
func (s *GameLeaderboardSet) GetView(key string) (view *leaderboard.Leaderboard, ok bool) {
	if key == "" {
		return s.allTime, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok = s.windows[key]
	return view, ok
}

// Apply unconditionally applies entry to the all-time view, then to every
// configured window whose duration has not yet elapsed as of now. Eligible
// windows receive the entry and have an expiration ticket emitted for it.
// now is sampled once by the caller so the eligibility decision is
// coherent across every window in a single Apply call.
func (s *GameLeaderboardSet) Apply(entry scoreentry.ScoreEntry, now time.Time, emit EmitTicket) {
	s.allTime.AddOrUpdate(entry)

	nowMs := now.UnixMilli()

	s.mu.RLock()
	type windowBinding struct {
		key string
		dur time.Duration
		lb  *leaderboard.Leaderboard
	}
	bindings := make([]windowBinding, 0, len(s.windows))
	for key, lb := range s.windows {
		bindings = append(bindings, windowBinding{key: key, dur: s.durations[key], lb: lb})
	}
	s.mu.RUnlock()

	for _, b := range bindings {
		if entry.TimestampMs <= nowMs-b.dur.Milliseconds() {
			// Outside this window; not inserted, no ticket.
			continue
		}
		b.lb.AddOrUpdate(entry)
		if emit != nil {
			emit(b.key, entry.TimestampMs+b.dur.Milliseconds(), entry)
		}
	}
}

// WindowDurations returns a snapshot of the configured window key ->
// duration map, used by the snapshotter to persist window configuration
// alongside entries.
func (s *GameLeaderboardSet) WindowDurations() map[string]time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Duration, len(s.durations))
	for k, v := range s.durations {
		out[k] = v
	}
	return out
}

// Windows returns a snapshot of the configured window key -> Leaderboard
// map, used by the snapshotter to enumerate every view's entries.
func (s *GameLeaderboardSet) Windows() map[string]*leaderboard.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*leaderboard.Leaderboard, len(s.windows))
	for k, v := range s.windows {
		out[k] = v
	}
	return out
}

// AllTime returns the all-time view.
func (s *GameLeaderboardSet) AllTime() *leaderboard.Leaderboard {
	return s.allTime
}
