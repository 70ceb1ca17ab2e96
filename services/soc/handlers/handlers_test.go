// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/sandbox"
	"github.com/AleutianAI/AegisSOC/services/soc/services"
	"github.com/AleutianAI/AegisSOC/services/soc/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stopPlanner ends every investigation immediately with a fixed verdict.
type stopPlanner struct{}

func (stopPlanner) PlanInvestigation(ctx context.Context, alertText string) *datatypes.InvestigationPlan {
	return &datatypes.InvestigationPlan{ThoughtProcess: "nothing to do"}
}

func (stopPlanner) PlanNextStep(ctx context.Context, state *datatypes.InvestigationState) datatypes.NextStepDecision {
	return datatypes.NextStepDecision{Decision: datatypes.DecisionStop, Reasoning: "done"}
}

func (stopPlanner) SynthesizeVerdict(ctx context.Context, alertText string, history []datatypes.TaskRecord) *datatypes.ThreatVerdict {
	return &datatypes.ThreatVerdict{Severity: datatypes.SeverityInfo, Confidence: 0.9, ThreatSummary: "Benign noise."}
}

type stubIntel struct{}

func (stubIntel) LookupIP(ctx context.Context, ip string) datatypes.IPReputation {
	return datatypes.IPReputation{IPAddress: ip, Reputation: datatypes.ReputationUnknown}
}

// stubAnalyzer answers every query the same way, or fails with err.
type stubAnalyzer struct {
	err error
}

func (s stubAnalyzer) Analyze(ctx context.Context, req datatypes.AnalystRequest) (*datatypes.AnalystResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &datatypes.AnalystResponse{
		Query:                 req.Query,
		NaturalLanguageAnswer: "42 flows matched.",
		Confidence:            "high",
	}, nil
}

func testEngine(t *testing.T, store storage.StateStore, analyzer Analyzer) *gin.Engine {
	t.Helper()
	router := services.NewRouter(stubIntel{}, stubAnalyzer{}, nil)
	svc := services.NewInvestigationService(store, stopPlanner{}, router, 0, nil)

	engine := gin.New()
	engine.POST("/v1/investigate", Investigate(svc))
	engine.GET("/v1/investigation/:id", GetInvestigation(svc))
	engine.GET("/v1/investigations", ListInvestigations(svc))
	engine.POST("/v1/analyze-logs", AnalyzeLogs(analyzer))
	engine.GET("/health", HealthCheck)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// ===== Investigation Endpoint Tests =====

func TestInvestigate(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/investigate", `{"alert": "failed logins from 10.1.2.3", "priority": "high"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var state datatypes.InvestigationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, datatypes.StatusCompleted, state.Status)
	require.NotNil(t, state.Verdict)
	assert.Equal(t, datatypes.SeverityInfo, state.Verdict.Severity)
}

func TestInvestigate_MissingAlert(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/investigate", `{"source": "splunk"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	assert.Contains(t, w.Body.String(), "Alert")
}

func TestInvestigate_InvalidPriority(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/investigate", `{"alert": "x", "priority": "urgent"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Priority")
}

func TestInvestigate_PersistenceFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailUpdates = true
	engine := testEngine(t, store, stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/investigate", `{"alert": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetInvestigation(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := testEngine(t, store, stubAnalyzer{})

	created, err := store.Create(context.Background(), "some alert")
	require.NoError(t, err)

	w := doJSON(t, engine, http.MethodGet, "/v1/investigation/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var state datatypes.InvestigationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, created.ID, state.ID)
	assert.Equal(t, "some alert", state.AlertText)
}

func TestGetInvestigation_NotFound(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodGet, "/v1/investigation/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListInvestigations(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := testEngine(t, store, stubAnalyzer{})

	for i := 0; i < 3; i++ {
		_, err := store.Create(context.Background(), "alert")
		require.NoError(t, err)
	}

	w := doJSON(t, engine, http.MethodGet, "/v1/investigations?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Investigations []datatypes.InvestigationState `json:"investigations"`
		Count          int                            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Investigations, 2)
}

func TestListInvestigations_BadLimit(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodGet, "/v1/investigations?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ===== Analysis Endpoint Tests =====

func TestAnalyzeLogs(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/analyze-logs", `{"query": "How many blocked flows?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.AnalystResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "How many blocked flows?", resp.Query)
	assert.Equal(t, "42 flows matched.", resp.NaturalLanguageAnswer)
}

func TestAnalyzeLogs_MissingQuery(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodPost, "/v1/analyze-logs", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Query")
}

func TestAnalyzeLogs_DatasetMissing(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{err: sandbox.ErrDatasetNotFound})

	w := doJSON(t, engine, http.MethodPost, "/v1/analyze-logs", `{"query": "x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	engine := testEngine(t, storage.NewMemoryStore(), stubAnalyzer{})

	w := doJSON(t, engine, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}