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

// Package httpapi is the thin external REST surface over the
// leaderboard manager: exactly the three endpoints of the external
// interface, with no auth or metrics (both declared external
// collaborators). Handler shape mirrors the teacher source's
// switch-on-sentinel-error response mapping (server/api_leaderboard.go),
// translated from gRPC codes to plain HTTP status ints since this
// surface is REST rather than gRPC.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/apperr"
	"github.com/olifarhaan/ringgrank/internal/manager"
	"github.com/olifarhaan/ringgrank/internal/scoreentry"
)

// windowPattern matches the spec's window grammar: empty, or a positive
// integer followed by one of h/m/M/d/s/S.
var windowPattern = regexp.MustCompile(`^([1-9][0-9]*[hmMdsS])?$`)

// Server exposes the three endpoints of the external interface.
type Server struct {
	logger *zap.Logger
	mgr    *manager.Manager
	router *mux.Router
}

// NewServer builds a Server with its routes registered.
func NewServer(logger *zap.Logger, mgr *manager.Manager) *Server {
	s := &Server{logger: logger, mgr: mgr, router: mux.NewRouter()}
	s.router.Use(s.requestLogger)
	s.router.HandleFunc("/api/v1/scores", s.handlePostScore).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/games/{gameId}/leaders", s.handleLeaders).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/games/{gameId}/users/{userId}/rank", s.handleUserRank).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.NewV4()
		requestID := ""
		if err == nil {
			requestID = id.String()
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type postScoreRequest struct {
	UserID    uint64 `json:"userId"`
	GameID    uint64 `json:"gameId"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handlePostScore(w http.ResponseWriter, r *http.Request) {
	var req postScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.UserID < 1 || req.GameID < 1 {
		writeError(w, http.StatusBadRequest, "userId and gameId must be >= 1")
		return
	}

	entry := scoreentry.ScoreEntry{
		UserID:      req.UserID,
		GameID:      req.GameID,
		Score:       req.Score,
		TimestampMs: req.Timestamp,
	}

	if err := s.mgr.RecordScore(entry); err != nil {
		writeMappedError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type leaderResponse struct {
	UserID    uint64 `json:"userId"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"`
	Rank      int    `json:"rank"`
}

func (s *Server) handleLeaders(w http.ResponseWriter, r *http.Request) {
	gameID, err := parseUint(mux.Vars(r)["gameId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid gameId")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
	}

	window := r.URL.Query().Get("window")
	if !windowPattern.MatchString(window) {
		writeError(w, http.StatusBadRequest, "malformed window")
		return
	}

	ranked, err := s.mgr.TopK(gameID, limit, window)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	out := make([]leaderResponse, len(ranked))
	for i, e := range ranked {
		out[i] = leaderResponse{UserID: e.UserID, Score: e.Score, Timestamp: e.TimestampMs, Rank: e.Rank}
	}
	writeJSON(w, http.StatusOK, out)
}

type userRankResponse struct {
	UserID     uint64  `json:"userId"`
	Rank       int     `json:"rank"`
	Score      int64   `json:"score"`
	Percentile float64 `json:"percentile"`
	Timestamp  int64   `json:"timestamp"`
}

func (s *Server) handleUserRank(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	gameID, err := parseUint(vars["gameId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid gameId")
		return
	}
	userID, err := parseUint(vars["userId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId")
		return
	}

	window := r.URL.Query().Get("window")
	if !windowPattern.MatchString(window) {
		writeError(w, http.StatusBadRequest, "malformed window")
		return
	}

	entry, rank, percentile, err := s.mgr.UserRank(gameID, userID, window)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userRankResponse{
		UserID:     userID,
		Rank:       rank,
		Score:      entry.Score,
		Percentile: percentile,
		Timestamp:  entry.TimestampMs,
	})
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrGameNotFound), errors.Is(err, apperr.ErrUserNotFoundInView):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrInvalidScore), errors.Is(err, apperr.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
