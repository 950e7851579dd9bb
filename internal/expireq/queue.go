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

// Package expireq implements the delay-ordered queue of window
// expiration tickets and the background worker that drains them. The
// queue replaces the teacher source's timer-per-leaderboard scheduling
// (server/leaderboard_scheduler.go) with a single min-heap ordered by
// due time, since this spec's windows fire per-entry rather than on a
// shared cron schedule.
package expireq

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// Ticket is a pending removal of entry from the windowed view identified
// by (GameID, WindowKey), due at DueAtMs. A ticket is authoritative only
// if entry is still the current entry for its user in that view;
// Leaderboard.Remove's equality check makes a stale ticket a silent
// no-op.
type Ticket struct {
	DueAtMs   int64
	GameID    uint64
	WindowKey string
	Entry     scoreentry.ScoreEntry
}

type ticketHeap []Ticket

func (h ticketHeap) Len() int            { return len(h) }
func (h ticketHeap) Less(i, j int) bool  { return h[i].DueAtMs < h[j].DueAtMs }
func (h ticketHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *ticketHeap) Push(x interface{}) { *h = append(*h, x.(Ticket)) }
func (h *ticketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a min-priority queue of Tickets keyed by DueAtMs. It is safe
// for concurrent pushers and a single or multiple takers.
type Queue struct {
	mu     sync.Mutex
	items  ticketHeap
	notify chan struct{}
}

// New returns an empty expiration queue.
func New() *Queue {
	return &Queue{
		items:  make(ticketHeap, 0),
		notify: make(chan struct{}, 1),
	}
}

// Push inserts t. If t is due earlier than every ticket currently in the
// queue, any goroutine blocked in Take is woken immediately so it can
// re-evaluate the new head.
func (q *Queue) Push(t Ticket) {
	q.mu.Lock()
	heap.Push(&q.items, t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of tickets currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take blocks until the head ticket's due time has arrived and pops it,
// or until ctx is done. now is the wall clock used to evaluate
// readiness; passing it in keeps the queue deterministic under test.
func (q *Queue) Take(ctx context.Context, now func() time.Time) (Ticket, error) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-ctx.Done():
				return Ticket{}, ctx.Err()
			}
		}

		head := q.items[0]
		nowMs := now().UnixMilli()
		if head.DueAtMs <= nowMs {
			popped := heap.Pop(&q.items).(Ticket)
			q.mu.Unlock()
			return popped, nil
		}

		wait := time.Duration(head.DueAtMs-nowMs) * time.Millisecond
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.notify:
			if !timer.Stop() {
				<-timer.C
			}
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return Ticket{}, ctx.Err()
		}
	}
}
