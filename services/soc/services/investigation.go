// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services coordinates the multi-agent investigation workflow:
// the ReAct loop over the planning capability, task dispatch through the
// router, and write-through persistence of every step.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/observability"
	"github.com/AleutianAI/AegisSOC/services/soc/storage"
)

// DefaultMaxLoops bounds the ReAct loop when no override is configured.
const DefaultMaxLoops = 10

// Planner is the planning and synthesis capability driving the loop.
// Implementations degrade internally: PlanNextStep returns a stop
// decision on failure and SynthesizeVerdict a fallback verdict, so the
// loop itself never sees a planner error.
type Planner interface {
	PlanInvestigation(ctx context.Context, alertText string) *datatypes.InvestigationPlan
	PlanNextStep(ctx context.Context, state *datatypes.InvestigationState) datatypes.NextStepDecision
	SynthesizeVerdict(ctx context.Context, alertText string, history []datatypes.TaskRecord) *datatypes.ThreatVerdict
}

// InvestigationService runs investigations end to end.
type InvestigationService struct {
	store    storage.StateStore
	planner  Planner
	router   *Router
	maxLoops int
	log      *slog.Logger
}

// NewInvestigationService wires the orchestrator. maxLoops <= 0 selects
// DefaultMaxLoops.
func NewInvestigationService(store storage.StateStore, planner Planner, router *Router, maxLoops int, log *slog.Logger) *InvestigationService {
	if maxLoops <= 0 {
		maxLoops = DefaultMaxLoops
	}
	if log == nil {
		log = slog.Default()
	}
	return &InvestigationService{
		store:    store,
		planner:  planner,
		router:   router,
		maxLoops: maxLoops,
		log:      log,
	}
}

// RunInvestigation is the main entry point. It creates the state, runs
// the ReAct loop (plan, execute, persist after every task), and
// synthesizes the final verdict.
//
// Persistence failures are fatal: the loop's crash-safety guarantee is
// that everything recorded in memory is also on disk, so a failed write
// ends the investigation rather than letting state drift.
func (s *InvestigationService) RunInvestigation(ctx context.Context, req datatypes.InvestigationRequest) (*datatypes.InvestigationState, error) {
	started := time.Now()

	state, err := s.store.Create(ctx, req.Alert)
	if err != nil {
		return nil, fmt.Errorf("create investigation: %w", err)
	}
	s.log.Info("Started investigation", "id", state.ID, "source", req.Source, "priority", req.Priority)

	// Initial plan. A degraded empty plan is fine; the loop still runs.
	plan := s.planner.PlanInvestigation(ctx, req.Alert)
	if err := state.SetPlan(*plan); err != nil {
		return s.fail(ctx, state, started, err)
	}
	if err := s.persist(ctx, state); err != nil {
		return s.fail(ctx, state, started, err)
	}
	if err := s.executeTasks(ctx, state, plan.Tasks); err != nil {
		return s.fail(ctx, state, started, err)
	}

	loops := 0
	for loops < s.maxLoops {
		loops++
		s.log.Info("ReAct loop iteration", "id", state.ID, "iteration", loops, "max", s.maxLoops)

		decision := s.planner.PlanNextStep(ctx, state)
		s.log.Info("Manager says", "id", state.ID, "decision", decision.Decision, "reasoning", decision.Reasoning)

		if decision.Decision == datatypes.DecisionStop || len(decision.Tasks) == 0 {
			s.log.Info("Manager decided to stop, moving to verdict", "id", state.ID)
			break
		}

		if err := s.executeTasks(ctx, state, decision.Tasks); err != nil {
			return s.fail(ctx, state, started, err)
		}
	}
	if loops >= s.maxLoops {
		s.log.Warn("Hit maximum loop limit, forcing stop", "id", state.ID, "max", s.maxLoops)
	}
	observability.InvestigationLoops.Observe(float64(loops))

	s.log.Info("Phase: final synthesis", "id", state.ID)
	verdict := s.planner.SynthesizeVerdict(ctx, state.AlertText, state.TasksHistory)
	verdict.InvestigationDurationMs = float64(time.Since(started).Microseconds()) / 1000.0

	if err := state.SetVerdict(*verdict); err != nil {
		return s.fail(ctx, state, started, err)
	}
	if err := s.persist(ctx, state); err != nil {
		return s.fail(ctx, state, started, err)
	}

	s.log.Info("Investigation complete", "id", state.ID, "severity", verdict.Severity, "confidence", verdict.Confidence)
	observability.InvestigationsTotal.WithLabelValues(string(state.Status)).Inc()
	observability.InvestigationDuration.Observe(time.Since(started).Seconds())
	return state, nil
}

// executeTasks dispatches tasks strictly in order, persisting after each
// one. Task-level failures are recorded as evidence and do not stop the
// batch; only persistence failures abort.
func (s *InvestigationService) executeTasks(ctx context.Context, state *datatypes.InvestigationState, tasks []datatypes.AgentTask) error {
	for _, task := range tasks {
		result := s.router.Dispatch(ctx, task)
		if err := state.AddTaskResult(task, result); err != nil {
			return err
		}
		if err := s.persist(ctx, state); err != nil {
			return err
		}
	}
	if len(tasks) > 0 {
		s.log.Info("Completed task batch", "id", state.ID, "tasks", len(tasks))
	}
	return nil
}

func (s *InvestigationService) persist(ctx context.Context, state *datatypes.InvestigationState) error {
	if err := s.store.Update(ctx, state); err != nil {
		return fmt.Errorf("persist investigation %s: %w", state.ID, err)
	}
	return nil
}

// fail marks the investigation failed and persists best-effort. The
// original error is returned to the caller; a secondary persistence
// failure is only logged, as there is nothing left to protect.
func (s *InvestigationService) fail(ctx context.Context, state *datatypes.InvestigationState, started time.Time, cause error) (*datatypes.InvestigationState, error) {
	s.log.Error("Investigation failed", "id", state.ID, "error", cause)
	state.MarkFailed(cause)
	if err := s.store.Update(ctx, state); err != nil {
		s.log.Error("could not persist failed investigation", "id", state.ID, "error", err)
	}
	observability.InvestigationsTotal.WithLabelValues(string(datatypes.StatusFailed)).Inc()
	observability.InvestigationDuration.Observe(time.Since(started).Seconds())
	return state, cause
}

// GetInvestigation retrieves one investigation by id.
func (s *InvestigationService) GetInvestigation(ctx context.Context, id string) (*datatypes.InvestigationState, error) {
	return s.store.Get(ctx, id)
}

// ListInvestigations returns up to limit investigations, newest first.
func (s *InvestigationService) ListInvestigations(ctx context.Context, limit int) ([]*datatypes.InvestigationState, error) {
	return s.store.ListRecent(ctx, limit)
}
