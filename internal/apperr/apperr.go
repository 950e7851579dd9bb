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

// Package apperr holds the sentinel error taxonomy shared by the
// manager and HTTP layers, in the style of the teacher source's
// leaderboard sentinel errors (server/leaderboard_cache.go's
// ErrLeaderboardNotFound / ErrLeaderboardAuthoritative).
package apperr

import "errors"

var (
	// ErrInvalidScore is returned when a submitted score is negative or
	// its timestamp lies in the future.
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidWindow is returned when a window key fails the grammar
	// in use at the HTTP boundary, or is syntactically valid but not
	// configured for the game.
	ErrInvalidWindow = errors.New("invalid or unrecognized window")
	// ErrGameNotFound is returned when no GameLeaderboardSet exists for
	// a game id.
	ErrGameNotFound = errors.New("game not found")
	// ErrUserNotFoundInView is returned when a user has no entry in the
	// selected view.
	ErrUserNotFoundInView = errors.New("user not present in view")
	// ErrPersistenceFailure covers WAL append, snapshot write, and WAL
	// rotation failures. Read failures during startup recovery are not
	// reported with it; they are reported as ErrRecoveryCorruption.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrRecoveryCorruption covers any failure to load the snapshot or
	// replay the WAL during startup, including a malformed WAL record, an
	// unreadable snapshot, and an I/O error while reading either; the
	// process refuses to start.
	ErrRecoveryCorruption = errors.New("recovery corruption")
)
