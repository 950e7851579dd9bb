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

// Package logging builds the process-wide zap.Logger from a Config,
// following the teacher source's SetupLogging/NewJSONFileLogger/
// NewRotatingJSONFileLogger/NewMultiLogger shape (server/logger.go).
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, destination, and rotation of the process log.
type Config struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Stdout     bool   `yaml:"stdout"`
	Rotation   bool   `yaml:"rotation"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	LocalTime  bool   `yaml:"local_time"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns console-only, info-level logging.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Stdout: true,
	}
}

// Setup builds the logger described by cfg. bootstrap is used to report
// configuration problems that occur before the real logger exists.
func Setup(bootstrap *zap.Logger, cfg *Config) *zap.Logger {
	level := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "", "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		bootstrap.Fatal("logger level invalid, must be one of: debug, info, warn, error")
	}

	consoleLogger := newJSONLogger(os.Stdout, level)

	var fileLogger *zap.Logger
	if cfg.File != "" {
		if cfg.Rotation {
			fileLogger = newRotatingFileLogger(bootstrap, cfg, level)
		} else {
			fileLogger = newFileLogger(bootstrap, cfg.File, level)
		}
	}

	if fileLogger == nil {
		return consoleLogger
	}
	if cfg.Stdout {
		return newMultiLogger(consoleLogger, fileLogger)
	}
	return fileLogger
}

func newFileLogger(bootstrap *zap.Logger, fileName string, level zapcore.Level) *zap.Logger {
	output, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		bootstrap.Error("could not create log file; falling back to console only", zap.Error(err))
		return nil
	}
	return newJSONLogger(output, level)
}

func newRotatingFileLogger(bootstrap *zap.Logger, cfg *Config, level zapcore.Level) *zap.Logger {
	logDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		bootstrap.Error("could not create log directory; falling back to console only", zap.Error(err))
		return nil
	}

	writeSyncer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  cfg.LocalTime,
		Compress:   cfg.Compress,
	})
	core := zapcore.NewCore(jsonEncoder(), writeSyncer, level)
	return zap.New(core, zap.AddCaller())
}

func newMultiLogger(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, 0, len(loggers))
	for _, l := range loggers {
		cores = append(cores, l.Core())
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func newJSONLogger(output *os.File, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.Lock(output), level)
	return zap.New(core, zap.AddCaller())
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
}
