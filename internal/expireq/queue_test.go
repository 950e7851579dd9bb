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

package expireq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/leaderboard"
	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

func TestQueue_TakeBlocksUntilDue(t *testing.T) {
	q := New()
	ctx := context.Background()

	fakeNow := time.UnixMilli(1000)
	nowFn := func() time.Time { return fakeNow }

	q.Push(Ticket{DueAtMs: 2000, GameID: 1, WindowKey: "24h"})

	done := make(chan Ticket, 1)
	go func() {
		ticket, err := q.Take(ctx, nowFn)
		require.NoError(t, err)
		done <- ticket
	}()

	select {
	case <-done:
		t.Fatal("Take returned before the ticket was due")
	case <-time.After(50 * time.Millisecond):
	}

	fakeNow = time.UnixMilli(2000)
	q.Push(Ticket{DueAtMs: 999999, GameID: 2, WindowKey: "24h"}) // wake the waiter to re-check

	select {
	case ticket := <-done:
		assert.EqualValues(t, 1, ticket.GameID)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after the clock advanced")
	}
}

func TestQueue_EarlierPushWakesWaiter(t *testing.T) {
	q := New()
	ctx := context.Background()
	now := time.UnixMilli(1_000_000)
	nowFn := func() time.Time { return now }

	q.Push(Ticket{DueAtMs: 10_000_000, GameID: 1})

	var wg sync.WaitGroup
	var got Ticket
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticket, err := q.Take(ctx, nowFn)
		require.NoError(t, err)
		got = ticket
	}()

	time.Sleep(20 * time.Millisecond)
	now = time.UnixMilli(1_000_001)
	q.Push(Ticket{DueAtMs: 1_000_001, GameID: 2})

	wg.Wait()
	assert.EqualValues(t, 2, got.GameID)
}

func TestQueue_TakeRespectsContextCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx, time.Now)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Take did not respect cancellation")
	}
}

func TestWorker_RemovesDueEntryFromWindowedView(t *testing.T) {
	view := leaderboard.New()
	entry := scoreentry.ScoreEntry{UserID: 1, GameID: 7, Score: 500, TimestampMs: 1000}
	view.AddOrUpdate(entry)

	q := New()
	lookup := func(gameID uint64, windowKey string) (*leaderboard.Leaderboard, bool) {
		if gameID == 7 && windowKey == "24h" {
			return view, true
		}
		return nil, false
	}

	w := NewWorker(zap.NewNop(), q, lookup, nil)
	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop(time.Second)

	q.Push(Ticket{DueAtMs: 0, GameID: 7, WindowKey: "24h", Entry: entry})

	require.Eventually(t, func() bool {
		_, ok := view.UserScore(1)
		return !ok
	}, time.Second, time.Millisecond)
}

func TestWorker_StaleTicketIsInert(t *testing.T) {
	view := leaderboard.New()
	stale := scoreentry.ScoreEntry{UserID: 1, GameID: 7, Score: 500, TimestampMs: 1000}
	fresh := scoreentry.ScoreEntry{UserID: 1, GameID: 7, Score: 600, TimestampMs: 2000}
	view.AddOrUpdate(stale)
	view.AddOrUpdate(fresh)

	q := New()
	lookup := func(gameID uint64, windowKey string) (*leaderboard.Leaderboard, bool) {
		return view, true
	}

	w := NewWorker(zap.NewNop(), q, lookup, nil)
	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop(time.Second)

	q.Push(Ticket{DueAtMs: 0, GameID: 7, WindowKey: "24h", Entry: stale})

	time.Sleep(50 * time.Millisecond)
	entry, ok := view.UserScore(1)
	require.True(t, ok)
	assert.Equal(t, fresh, entry)
}
