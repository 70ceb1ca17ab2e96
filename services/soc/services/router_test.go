// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
)

type fakeIntel struct {
	lookups []string
}

func (f *fakeIntel) LookupIP(ctx context.Context, ip string) datatypes.IPReputation {
	f.lookups = append(f.lookups, ip)
	if ip == "89.248.172.16" {
		return datatypes.IPReputation{IPAddress: ip, Reputation: datatypes.ReputationMalicious, ThreatScore: 95, Source: "mock_db"}
	}
	return datatypes.IPReputation{IPAddress: ip, Reputation: datatypes.ReputationUnknown, Source: "mock_db_miss"}
}

type fakeAnalyst struct {
	queries []string
	err     error
	panic   bool
	answer  string
}

func (f *fakeAnalyst) Analyze(ctx context.Context, req datatypes.AnalystRequest) (*datatypes.AnalystResponse, error) {
	f.queries = append(f.queries, req.Query)
	if f.panic {
		panic("analyst exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &datatypes.AnalystResponse{
		Query:                 req.Query,
		NaturalLanguageAnswer: f.answer,
		Confidence:            "high",
	}, nil
}

// ===== Task Routing Tests =====

func TestDispatch_IntelLookup(t *testing.T) {
	intel := &fakeIntel{}
	router := NewRouter(intel, &fakeAnalyst{}, nil)

	result := router.Dispatch(context.Background(), datatypes.AgentTask{
		Agent:  datatypes.AgentIntel,
		Action: "lookup_ip",
		Params: map[string]any{"ip_address": "89.248.172.16"},
	})

	assert.Equal(t, datatypes.TaskSuccess, result.Status)
	assert.Equal(t, []string{"89.248.172.16"}, intel.lookups)

	rep, ok := result.Output.(datatypes.IPReputation)
	require.True(t, ok)
	assert.Equal(t, datatypes.ReputationMalicious, rep.Reputation)
}

func TestDispatch_AnalystQuery(t *testing.T) {
	analyst := &fakeAnalyst{answer: "2 brute force attempts."}
	router := NewRouter(&fakeIntel{}, analyst, nil)

	result := router.Dispatch(context.Background(), datatypes.AgentTask{
		Agent:  datatypes.AgentAnalyst,
		Action: "analyze_logs",
		Params: map[string]any{"query": "How many brute force attempts?"},
	})

	assert.Equal(t, datatypes.TaskSuccess, result.Status)
	assert.Equal(t, []string{"How many brute force attempts?"}, analyst.queries)
}

func TestDispatch_ParamValidation(t *testing.T) {
	router := NewRouter(&fakeIntel{}, &fakeAnalyst{}, nil)

	tests := []struct {
		name    string
		task    datatypes.AgentTask
		wantErr string
	}{
		{
			"missing ip_address",
			datatypes.AgentTask{Agent: datatypes.AgentIntel, Action: "lookup_ip", Params: map[string]any{}},
			`missing "ip_address" parameter`,
		},
		{
			"non-string ip_address",
			datatypes.AgentTask{Agent: datatypes.AgentIntel, Action: "lookup_ip", Params: map[string]any{"ip_address": 42}},
			`parameter "ip_address" must be a non-empty string`,
		},
		{
			"empty query",
			datatypes.AgentTask{Agent: datatypes.AgentAnalyst, Action: "analyze_logs", Params: map[string]any{"query": ""}},
			`parameter "query" must be a non-empty string`,
		},
		{
			"ip_address is not an address",
			datatypes.AgentTask{Agent: datatypes.AgentIntel, Action: "lookup_ip", Params: map[string]any{"ip_address": "evil.example.com"}},
			"invalid ip_address",
		},
		{
			"unknown agent",
			datatypes.AgentTask{Agent: "forensics", Action: "carve_disk", Params: map[string]any{}},
			"unknown agent",
		},
		{
			"unknown action",
			datatypes.AgentTask{Agent: datatypes.AgentIntel, Action: "lookup_domain", Params: map[string]any{}},
			`unknown action "lookup_domain"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Dispatch(context.Background(), tt.task)
			assert.Equal(t, datatypes.TaskError, result.Status)
			assert.Contains(t, result.Error, tt.wantErr)
			assert.Equal(t, tt.task.Agent, result.Agent)
		})
	}
}

func TestDispatch_HandlerErrorBecomesErrorResult(t *testing.T) {
	analyst := &fakeAnalyst{err: errors.New("dataset not found: /tmp/x.csv")}
	router := NewRouter(&fakeIntel{}, analyst, nil)

	result := router.Dispatch(context.Background(), datatypes.AgentTask{
		Agent:  datatypes.AgentAnalyst,
		Action: "analyze_logs",
		Params: map[string]any{"query": "anything"},
	})

	assert.Equal(t, datatypes.TaskError, result.Status)
	assert.Contains(t, result.Error, "dataset not found")
}

func TestDispatch_PanicRecovered(t *testing.T) {
	analyst := &fakeAnalyst{panic: true}
	router := NewRouter(&fakeIntel{}, analyst, nil)

	result := router.Dispatch(context.Background(), datatypes.AgentTask{
		Agent:  datatypes.AgentAnalyst,
		Action: "analyze_logs",
		Params: map[string]any{"query": "anything"},
	})

	assert.Equal(t, datatypes.TaskError, result.Status)
	assert.Contains(t, result.Error, "task handler panicked")
	assert.Nil(t, result.Output)
}
