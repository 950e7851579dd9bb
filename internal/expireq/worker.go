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
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/leaderboard"
)

// GameSetLookup resolves a game id to its windowed view for a ticket,
// or false if the game or window no longer exists.
type GameSetLookup func(gameID uint64, windowKey string) (*leaderboard.Leaderboard, bool)

// Worker continuously drains due tickets from a Queue and removes the
// referenced entry from the referenced windowed view. Modeled on the
// teacher source's LocalLeaderboardScheduler.invokeCallback loop
// (server/leaderboard_scheduler.go): a context-cancellable goroutine
// draining a channel/queue, logging failures rather than panicking.
type Worker struct {
	logger  *zap.Logger
	queue   *Queue
	lookup  GameSetLookup
	now     func() time.Time
	stopped chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
}

// NewWorker constructs a Worker. now defaults to time.Now when nil.
func NewWorker(logger *zap.Logger, queue *Queue, lookup GameSetLookup, now func() time.Time) *Worker {
	if now == nil {
		now = time.Now
	}
	return &Worker{
		logger:  logger,
		queue:   queue,
		lookup:  lookup,
		now:     now,
		stopped: make(chan struct{}),
	}
}

// Start launches the background drain loop. It returns immediately; call
// Stop to request a shutdown.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go func() {
		defer close(w.stopped)
		for {
			ticket, err := w.queue.Take(ctx, w.now)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				w.logger.Error("expiration worker failed to take ticket", zap.Error(err))
				return
			}

			view, ok := w.lookup(ticket.GameID, ticket.WindowKey)
			if !ok {
				// Game or window was removed before the ticket fired.
				continue
			}
			view.Remove(ticket.Entry)
		}
	}()
}

// Stop signals the worker to exit and blocks until it has (or until
// timeout elapses, whichever comes first). It mirrors the spec's bounded
// 5s join requirement without hard-coding the duration here.
func (w *Worker) Stop(timeout time.Duration) {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})

	select {
	case <-w.stopped:
	case <-time.After(timeout):
		w.logger.Warn("expiration worker did not stop within timeout; abandoning")
	}
}
