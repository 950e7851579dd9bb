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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/olifarhaan/ringgrank/internal/apperr"
	"github.com/olifarhaan/ringgrank/internal/config"
	"github.com/olifarhaan/ringgrank/internal/httpapi"
	"github.com/olifarhaan/ringgrank/internal/logging"
	"github.com/olifarhaan/ringgrank/internal/manager"
	"github.com/olifarhaan/ringgrank/internal/wal"
)

const shutdownGracePeriod = 5 * time.Second

func main() {
	bootstrapLogger := zap.NewExample()

	cfg := config.ParseArgs(bootstrapLogger, os.Args)
	logger := logging.Setup(bootstrapLogger, cfg.Logger)
	defer logger.Sync()

	logger.Info("ringgrankd starting",
		zap.String("wal_path", cfg.WALPath),
		zap.String("snapshot_path", cfg.SnapshotPath),
		zap.Int("http_port", cfg.HTTPPort),
	)

	windowDurations, err := cfg.WindowDurations()
	if err != nil {
		logger.Fatal("invalid default window configuration", zap.Error(err))
	}

	w, err := wal.Open(logger, cfg.WALPath, cfg.Durability())
	if err != nil {
		logger.Fatal("could not open write-ahead log", zap.Error(err))
	}

	mgr, err := manager.New(logger, w, cfg.WALPath, manager.Config{
		SnapshotPath:     cfg.SnapshotPath,
		SnapshotTmpPath:  cfg.SnapshotTmpPath,
		WALArchivePath:   cfg.WALArchivePath,
		SnapshotInterval: cfg.SnapshotInterval(),
		DefaultWindows:   windowDurations,
	})
	if err != nil {
		// Recovery failures (apperr.ErrRecoveryCorruption) are fatal: the
		// process refuses to start on a corrupt snapshot or WAL, per §7.
		logger.Fatal("recovery failed", zap.Error(err), zap.Bool("corruption", errors.Is(err, apperr.ErrRecoveryCorruption)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	server := httpapi.NewServer(logger, mgr)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: server,
	}

	go func() {
		logger.Info("http listening", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	if err := mgr.Shutdown(shutdownGracePeriod, shutdownGracePeriod); err != nil {
		logger.Error("manager shutdown error", zap.Error(err))
	}

	logger.Info("ringgrankd stopped")
}
