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

package manager

import (
	"github.com/olifarhaan/ringgrank/internal/apperr"
	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// RankedEntry pairs a ScoreEntry with its 1-based rank in the view it
// was read from.
type RankedEntry struct {
	scoreentry.ScoreEntry
	Rank int
}

// TopK resolves (gameID, windowKey) to a view and returns its top limit
// entries with ranks attached. windowKey == "" selects the all-time
// view. Returns apperr.ErrGameNotFound or apperr.ErrInvalidWindow.
func (m *Manager) TopK(gameID uint64, limit int, windowKey string) ([]RankedEntry, error) {
	set, ok := m.GetGameSet(gameID)
	if !ok {
		return nil, apperr.ErrGameNotFound
	}
	view, ok := set.GetView(windowKey)
	if !ok {
		return nil, apperr.ErrInvalidWindow
	}

	entries := view.TopK(limit)
	out := make([]RankedEntry, len(entries))
	for i, e := range entries {
		out[i] = RankedEntry{ScoreEntry: e, Rank: i + 1}
	}
	return out, nil
}

// UserRank resolves (gameID, windowKey) to a view and returns userID's
// current entry, rank, and percentile within it. Returns
// apperr.ErrGameNotFound, apperr.ErrInvalidWindow, or
// apperr.ErrUserNotFoundInView.
func (m *Manager) UserRank(gameID, userID uint64, windowKey string) (entry scoreentry.ScoreEntry, rank int, percentile float64, err error) {
	set, ok := m.GetGameSet(gameID)
	if !ok {
		return scoreentry.ScoreEntry{}, 0, 0, apperr.ErrGameNotFound
	}
	view, ok := set.GetView(windowKey)
	if !ok {
		return scoreentry.ScoreEntry{}, 0, 0, apperr.ErrInvalidWindow
	}

	entry, ok = view.UserScore(userID)
	if !ok {
		return scoreentry.ScoreEntry{}, 0, 0, apperr.ErrUserNotFoundInView
	}

	rank, _ = view.UserRank(userID)
	percentile = Percentile(rank, view.Size())
	return entry, rank, percentile, nil
}

// Percentile implements ((total - rank + 1) * 100) / total, with
// total == 0 yielding 0.0. Rank 1 of a 100-player view returns 100.0;
// the last rank returns 100/total.
func Percentile(rank, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64((total-rank+1)*100) / float64(total)
}
