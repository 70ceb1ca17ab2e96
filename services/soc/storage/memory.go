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
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
)

// MemoryStore is a map-backed StateStore for tests. Documents are stored
// as JSON bytes so Get returns an independent copy, matching the
// serialization behavior of the Badger store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// FailUpdates makes every Update return an error. Used to exercise
	// the orchestrator's PersistenceFailure path.
	FailUpdates bool

	// FailAfter, when > 0, fails the Nth and later Update calls.
	FailAfter int

	updates int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Create implements StateStore.
func (m *MemoryStore) Create(ctx context.Context, alertText string) (*datatypes.InvestigationState, error) {
	state := datatypes.NewInvestigationState(alertText)
	if err := m.Update(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Get implements StateStore.
func (m *MemoryStore) Get(ctx context.Context, id string) (*datatypes.InvestigationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	doc, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var state datatypes.InvestigationState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Update implements StateStore.
func (m *MemoryStore) Update(ctx context.Context, state *datatypes.InvestigationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updates++
	if m.FailUpdates || (m.FailAfter > 0 && m.updates >= m.FailAfter) {
		return fmt.Errorf("simulated persistence failure on update %d", m.updates)
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.docs[state.ID] = doc
	return nil
}

// ListRecent implements StateStore.
func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*datatypes.InvestigationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	states := make([]*datatypes.InvestigationState, 0, len(m.docs))
	for _, doc := range m.docs {
		var state datatypes.InvestigationState
		if err := json.Unmarshal(doc, &state); err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		states = append(states, &state)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	if len(states) > limit {
		states = states[:limit]
	}
	return states, nil
}

// Close implements StateStore.
func (m *MemoryStore) Close() error { return nil }
