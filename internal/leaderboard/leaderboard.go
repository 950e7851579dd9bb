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

// Package leaderboard implements a single ranking view: a rank-augmented
// skip list paired with a user -> entry map, kept atomic with respect to
// readers.
package leaderboard

import (
	"sync"

	"github.com/olifarhaan/ringgrank/internal/scoreentry"
	"github.com/olifarhaan/ringgrank/internal/skiplist"
)

// Leaderboard holds one logical view (all-time, or a single window) for a
// game: at most one ScoreEntry per user, ordered by scoreentry.ScoreEntry's
// total order.
type Leaderboard struct {
	sync.RWMutex
	index *skiplist.SkipList
	users map[uint64]scoreentry.ScoreEntry
}

// New returns an empty ranking view.
func New() *Leaderboard {
	return &Leaderboard{
		index: skiplist.New(),
		users: make(map[uint64]scoreentry.ScoreEntry),
	}
}

// AddOrUpdate applies entry as the new current entry for entry.UserID,
// replacing any prior entry for that user. There is no "keep higher
// score" policy: the most recent submission always wins. This preserves
// the teacher source's last-write-wins behavior; it is a deliberate
// policy decision, not a bug, and is flagged for stakeholder confirmation
// the same way the spec calls it out.
func (l *Leaderboard) AddOrUpdate(entry scoreentry.ScoreEntry) {
	l.Lock()
	defer l.Unlock()

	if old, ok := l.users[entry.UserID]; ok {
		l.index.Delete(old)
	}
	l.users[entry.UserID] = entry
	l.index.Insert(entry)
}

// Remove removes entry from the sorted index. The user -> entry binding
// is only cleared if it still points at entry, so removing a
// since-superseded entry is harmless. A missing entry is a silent no-op,
// which is what makes a stale expiration ticket inert.
func (l *Leaderboard) Remove(entry scoreentry.ScoreEntry) {
	l.Lock()
	defer l.Unlock()

	l.index.Delete(entry)
	if current, ok := l.users[entry.UserID]; ok && current == entry {
		delete(l.users, entry.UserID)
	}
}

// TopK returns the first min(k, Size()) entries in sort order. k <= 0
// returns an empty slice.
func (l *Leaderboard) TopK(k int) []scoreentry.ScoreEntry {
	if k <= 0 {
		return nil
	}

	l.RLock()
	defer l.RUnlock()

	out := make([]scoreentry.ScoreEntry, 0, k)
	for e := l.index.Front(); e != nil && len(out) < k; e = e.Next() {
		out = append(out, e.Value.(scoreentry.ScoreEntry))
	}
	return out
}

// All returns every entry currently held, in sort order. Used by the
// snapshotter to capture a view's full contents.
func (l *Leaderboard) All() []scoreentry.ScoreEntry {
	l.RLock()
	defer l.RUnlock()

	out := make([]scoreentry.ScoreEntry, 0, l.index.Len())
	for e := l.index.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(scoreentry.ScoreEntry))
	}
	return out
}

// UserScore returns the entry currently bound to userID, if any.
func (l *Leaderboard) UserScore(userID uint64) (scoreentry.ScoreEntry, bool) {
	l.RLock()
	defer l.RUnlock()

	entry, ok := l.users[userID]
	return entry, ok
}

// UserRank returns the 1-based rank of userID's current entry, or false
// if the user is unbound in this view. The rank of the single smallest
// entry equals Size().
func (l *Leaderboard) UserRank(userID uint64) (int, bool) {
	l.RLock()
	defer l.RUnlock()

	entry, ok := l.users[userID]
	if !ok {
		return 0, false
	}
	return l.index.GetRank(entry), true
}

// Size returns the number of entries currently held in the view.
func (l *Leaderboard) Size() int {
	l.RLock()
	defer l.RUnlock()

	return l.index.Len()
}
