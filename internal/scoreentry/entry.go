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

// Package scoreentry defines the immutable value type shared by every
// ranking view.
package scoreentry

import "github.com/olifarhaan/ringgrank/internal/skiplist"

// ScoreEntry is an immutable score submission. Two entries are considered
// the same logical entry when every field is equal.
type ScoreEntry struct {
	UserID      uint64
	GameID      uint64
	Score       int64
	TimestampMs int64
}

// Less implements skiplist.Interface. The total order is score
// descending, then timestamp ascending (earlier wins ties), then user id
// ascending as a final tiebreak so the ordering is strict even when two
// submissions share both score and timestamp.
func (e ScoreEntry) Less(other interface{}) bool {
	o, ok := other.(ScoreEntry)
	if !ok {
		return true
	}

	if e.Score != o.Score {
		return e.Score > o.Score
	}
	if e.TimestampMs != o.TimestampMs {
		return e.TimestampMs < o.TimestampMs
	}
	return e.UserID < o.UserID
}

var _ skiplist.Interface = ScoreEntry{}
