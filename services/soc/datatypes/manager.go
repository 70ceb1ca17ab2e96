// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "fmt"

// ========== REQUEST/RESPONSE STRUCTURES ==========

// InvestigationRequest is the payload that triggers an investigation.
type InvestigationRequest struct {
	// Alert is the high-level description of the security event.
	Alert string `json:"alert" binding:"required"`

	// Source of the alert (e.g., splunk, sentinel, manual).
	Source string `json:"source,omitempty"`

	Priority string `json:"priority,omitempty" binding:"omitempty,oneof=critical high medium low"`
}

// ========== PLANNING ==========

// AgentTask is a single unit of work the manager delegates to a sub-agent.
type AgentTask struct {
	// Agent names the capability: "intel" or "analyst".
	Agent string `json:"agent"`

	// Action is the function to invoke, e.g. "lookup_ip", "analyze_logs".
	Action string `json:"action"`

	// Params carries the action arguments. Shapes are validated per
	// (agent, action) at the router boundary, not here.
	Params map[string]any `json:"params"`

	// Reasoning explains why the manager scheduled this task.
	Reasoning string `json:"reasoning"`
}

const (
	AgentIntel   = "intel"
	AgentAnalyst = "analyst"
)

// Validate rejects structurally malformed tasks before dispatch. A failed
// validation becomes an error TaskRecord, never a Go error in the loop.
func (t AgentTask) Validate() error {
	switch t.Agent {
	case AgentIntel, AgentAnalyst:
	default:
		return fmt.Errorf("unknown agent: %q", t.Agent)
	}
	if t.Action == "" {
		return fmt.Errorf("task for agent %q has no action", t.Agent)
	}
	return nil
}

// InvestigationPlan is the manager's initial strategy for an alert.
type InvestigationPlan struct {
	Tasks          []AgentTask `json:"tasks"`
	ThoughtProcess string      `json:"thought_process"`
}

// DecisionKind is the manager's verdict on whether to keep investigating.
type DecisionKind string

const (
	DecisionContinue DecisionKind = "continue"
	DecisionStop     DecisionKind = "stop"
)

// NextStepDecision is the manager's answer to "what should we do next?".
// Decision=stop (or an empty task list) ends the ReAct loop.
type NextStepDecision struct {
	Decision  DecisionKind `json:"decision"`
	Reasoning string       `json:"reasoning"`
	Tasks     []AgentTask  `json:"tasks"`
}

// ========== VERDICT ==========

// Severity buckets for the final verdict.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// ThreatVerdict is the final conclusion of an investigation, produced
// exactly once by the synthesis capability.
type ThreatVerdict struct {
	Severity string `json:"severity"`

	// Confidence in the verdict, 0.0 to 1.0.
	Confidence float64 `json:"confidence"`

	ThreatSummary      string   `json:"threat_summary"`
	Evidence           []string `json:"evidence"`
	RecommendedActions []string `json:"recommended_actions"`
	AffectedAssets     []string `json:"affected_assets"`

	// InvestigationDurationMs is the total wall-clock time of the run.
	InvestigationDurationMs float64 `json:"investigation_duration_ms"`
}

// ValidSeverity reports whether s is one of the five severity buckets.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}
