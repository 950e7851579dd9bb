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

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/manager"
	"github.com/olifarhaan/ringgrank/internal/wal"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	walPath := filepath.Join(dir, "wal.active")
	w, err := wal.Open(zap.NewNop(), walPath, wal.FlushOnly)
	require.NoError(t, err)

	m, err := manager.New(zap.NewNop(), w, walPath, manager.Config{
		SnapshotPath:     filepath.Join(dir, "snapshot"),
		SnapshotTmpPath:  filepath.Join(dir, "snapshot.tmp"),
		WALArchivePath:   filepath.Join(dir, "wal.archive"),
		SnapshotInterval: time.Hour,
		DefaultWindows:   map[string]time.Duration{"24h": 24 * time.Hour},
		Now:              func() time.Time { return time.UnixMilli(10_000_000) },
	})
	require.NoError(t, err)

	return NewServer(zap.NewNop(), m)
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandlePostScore_Accepted(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/api/v1/scores", map[string]any{
		"userId": 1, "gameId": 7, "score": 500, "timestamp": 1_000_000,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandlePostScore_S7_NegativeScoreRejected(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/api/v1/scores", map[string]any{
		"userId": 1, "gameId": 7, "score": -1, "timestamp": 1_000_000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePostScore_S7_FutureTimestampRejected(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/api/v1/scores", map[string]any{
		"userId": 1, "gameId": 7, "score": 10, "timestamp": time.UnixMilli(10_000_000).Add(time.Hour).UnixMilli(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePostScore_S7_ZeroUserIDRejected(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/api/v1/scores", map[string]any{
		"userId": 0, "gameId": 7, "score": 10, "timestamp": 1_000_000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLeaders_UnknownGameIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/999/leaders", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLeaders_MalformedWindowIs400(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 1, "gameId": 7, "score": 10, "timestamp": 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/7/leaders?window=notawindow", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLeaders_OutOfRangeLimitIs400(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 1, "gameId": 7, "score": 10, "timestamp": 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/7/leaders?limit=0", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLeaders_S1_TiebreakOrdering(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 1, "gameId": 7, "score": 100, "timestamp": 1000})
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 2, "gameId": 7, "score": 100, "timestamp": 999})
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 3, "gameId": 7, "score": 100, "timestamp": 1000})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/7/leaders?limit=3", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var leaders []leaderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leaders))
	require.Len(t, leaders, 3)
	assert.EqualValues(t, 2, leaders[0].UserID)
	assert.EqualValues(t, 1, leaders[1].UserID)
	assert.EqualValues(t, 3, leaders[2].UserID)
}

func TestHandleUserRank_UserNotFoundIs404(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 1, "gameId": 7, "score": 10, "timestamp": 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/7/users/2/rank", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUserRank_OK(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/scores", map[string]any{"userId": 1, "gameId": 7, "score": 10, "timestamp": 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/7/users/1/rank", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp userRankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rank)
	assert.Equal(t, 100.0, resp.Percentile)
}
