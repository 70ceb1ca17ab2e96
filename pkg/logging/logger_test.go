// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestDefault_WritesWithoutPanic(t *testing.T) {
	logger := Default()
	defer logger.Close()

	logger.Debug("debug message", "k", "v")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", "error", os.ErrNotExist)
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "soc-test",
		Quiet:   true,
	})
	logger.Info("persisted investigation", "investigation_id", "abc-123")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := "soc-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}
}

func TestNew_CreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logger := New(Config{LogDir: dir, Service: "soc", Quiet: true})
	logger.Info("hello")
	defer logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log directory was not created: %v", err)
	}
}

func TestWith_ChildCarriesAttributes(t *testing.T) {
	logger := Default()
	defer logger.Close()

	child := logger.With("investigation_id", "inv-1")
	if child.Slog() == logger.Slog() {
		t.Error("With() should return a distinct slog.Logger")
	}
	child.Info("child logger write")
}

func TestClose_NoFileIsNoop(t *testing.T) {
	logger := Default()
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on stderr-only logger should be nil, got %v", err)
	}
	// Second close is also a no-op.
	if err := logger.Close(); err != nil {
		t.Errorf("double Close() should be nil, got %v", err)
	}
}
