// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/dgraph-io/badger/v4"
)

const investigationPrefix = "investigation/"

// Config holds configuration for the Badger-backed state store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. Every Update
	// is a crash-safety boundary, so production keeps this on.
	SyncWrites bool

	// Logger for BadgerDB internals. If nil, Badger's own logging is
	// disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns configuration optimized for testing: in-memory,
// no sync overhead.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists investigations as JSON documents in BadgerDB.
// Safe for concurrent use; Badger serializes conflicting writes and the
// contract is last-write-wins at the document level.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a Badger-backed state store with the given
// configuration. Creates the directory if it doesn't exist. Caller must
// call Close() when done.
func OpenBadger(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Create implements StateStore.
func (s *BadgerStore) Create(ctx context.Context, alertText string) (*datatypes.InvestigationState, error) {
	state := datatypes.NewInvestigationState(alertText)
	if err := s.Update(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Get implements StateStore.
func (s *BadgerStore) Get(ctx context.Context, id string) (*datatypes.InvestigationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state datatypes.InvestigationState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(investigationPrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read investigation %s: %w", id, err)
	}
	return &state, nil
}

// Update implements StateStore: full-document upsert, last write wins.
func (s *BadgerStore) Update(ctx context.Context, state *datatypes.InvestigationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || state.ID == "" {
		return errors.New("state must have an id")
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal investigation %s: %w", state.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(investigationPrefix+state.ID), doc)
	})
	if err != nil {
		return fmt.Errorf("persist investigation %s: %w", state.ID, err)
	}
	return nil
}

// ListRecent implements StateStore. Investigations are small documents,
// so listing scans the prefix and sorts in memory.
func (s *BadgerStore) ListRecent(ctx context.Context, limit int) ([]*datatypes.InvestigationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var states []*datatypes.InvestigationState
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(investigationPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var state datatypes.InvestigationState
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			})
			if err != nil {
				return err
			}
			states = append(states, &state)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	if len(states) > limit {
		states = states[:limit]
	}
	return states, nil
}

// Close implements StateStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
