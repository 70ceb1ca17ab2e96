// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage is the persistence boundary for investigation state.
//
// The orchestrator writes through the StateStore contract after every
// mutation; no other write path exists. Documents are stored whole
// (last write wins), which keeps the crash-safety story simple: a crash
// can lose at most the task currently in flight.
package storage

import (
	"context"
	"errors"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
)

// ErrNotFound is returned by Get when no investigation has the given id.
var ErrNotFound = errors.New("investigation not found")

// StateStore is the durable document store contract for investigations.
type StateStore interface {
	// Create allocates an id, persists a running investigation for the
	// alert, and returns it.
	Create(ctx context.Context, alertText string) (*datatypes.InvestigationState, error)

	// Get retrieves state by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*datatypes.InvestigationState, error)

	// Update is an idempotent full-document upsert keyed by id.
	Update(ctx context.Context, state *datatypes.InvestigationState) error

	// ListRecent returns up to limit investigations, newest first.
	ListRecent(ctx context.Context, limit int) ([]*datatypes.InvestigationState, error)

	// Close releases store resources.
	Close() error
}
