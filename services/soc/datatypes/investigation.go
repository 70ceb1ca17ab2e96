// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvestigationStatus is the lifecycle state of an investigation.
// Transitions are monotonic: running may move to completed or failed,
// and terminal states never change again.
type InvestigationStatus string

const (
	StatusRunning   InvestigationStatus = "running"
	StatusCompleted InvestigationStatus = "completed"
	StatusFailed    InvestigationStatus = "failed"
)

// Terminal reports whether the status is final.
func (s InvestigationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrTerminalState is returned by mutation helpers when the investigation
// has already completed or failed.
var ErrTerminalState = errors.New("investigation is in a terminal state")

// TaskStatus marks a dispatched task as succeeded or failed.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// TaskResult is the normalized outcome of one dispatched task. Handler
// failures are carried in Error with Status=error; they are evidence,
// never exceptions.
type TaskResult struct {
	Agent  string     `json:"agent"`
	Action string     `json:"action"`
	Status TaskStatus `json:"status"`
	Output any        `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// TaskRecord is one executed unit appended to the investigation history.
// Records are immutable once appended and the history is never reordered
// or truncated.
type TaskRecord struct {
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Output    TaskResult     `json:"output"`
	Timestamp time.Time      `json:"timestamp"`
}

// InvestigationState is the master document for one investigation: the
// alert that started it, the manager's plan, the accumulated task
// evidence, and the final verdict. It is the unit of persistence; the
// orchestrator saves the whole document after every mutation.
type InvestigationState struct {
	// Unique ID for the investigation (storage lookup key).
	ID string `json:"id"`

	// The original alert that started it all. Immutable after creation.
	AlertText string `json:"alert_text"`

	Status InvestigationStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Plan is the manager's initial strategy, set at most once.
	Plan *InvestigationPlan `json:"plan,omitempty"`

	// Verdict is the final synthesis, set exactly once at completion.
	Verdict *ThreatVerdict `json:"verdict,omitempty"`

	// TasksHistory is the ordered, append-only evidence trail.
	TasksHistory []TaskRecord `json:"tasks_history"`
}

// NewInvestigationState creates a running investigation for the alert.
func NewInvestigationState(alertText string) *InvestigationState {
	now := time.Now().UTC()
	return &InvestigationState{
		ID:           uuid.NewString(),
		AlertText:    alertText,
		Status:       StatusRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
		TasksHistory: []TaskRecord{},
	}
}

// AddTaskResult appends a completed task to the history and refreshes
// UpdatedAt. Returns ErrTerminalState on completed/failed investigations;
// history never grows after the verdict.
func (s *InvestigationState) AddTaskResult(task AgentTask, result TaskResult) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.TasksHistory = append(s.TasksHistory, TaskRecord{
		Agent:     task.Agent,
		Action:    task.Action,
		Params:    task.Params,
		Output:    result,
		Timestamp: time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPlan records the manager's initial strategy. The plan is write-once.
func (s *InvestigationState) SetPlan(plan InvestigationPlan) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	if s.Plan != nil {
		return errors.New("investigation plan is already set")
	}
	s.Plan = &plan
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SetVerdict completes the investigation with its final synthesis.
func (s *InvestigationState) SetVerdict(verdict ThreatVerdict) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.Verdict = &verdict
	s.Status = StatusCompleted
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed moves a running investigation to failed and appends an error
// record describing the fatal condition. Calling it on an investigation
// that is already terminal is a no-op so shutdown paths stay idempotent.
func (s *InvestigationState) MarkFailed(cause error) {
	if s.Status.Terminal() {
		return
	}
	s.Status = StatusFailed
	s.TasksHistory = append(s.TasksHistory, TaskRecord{
		Agent:  "orchestrator",
		Action: "fail",
		Output: TaskResult{
			Agent:  "orchestrator",
			Action: "fail",
			Status: TaskError,
			Error:  cause.Error(),
		},
		Timestamp: time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
}
