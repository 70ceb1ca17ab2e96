// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package manager holds the planning and synthesis side of an
// investigation: decomposing an alert into tasks, deciding after each
// round whether more evidence is needed, and rolling everything up into
// a final verdict.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AegisSOC/services/llm"
	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
)

const plannerSystemPrompt = `You are a Senior SOC Manager. Your goal is to investigate security alerts by delegating tasks to specialized agents.

**Available Agents:**
1. **Intel Agent**:
   - Action: ` + "`lookup_ip`" + `
   - Params: ` + "`" + `{"ip_address": "8.8.8.8"}` + "`" + `
   - Use for: IP reputation, threat intelligence.

2. **Analyst Agent**:
   - Action: ` + "`analyze_logs`" + `
   - Params: ` + "`" + `{"query": "Count login attempts from 1.2.3.4"}` + "`" + `
   - Use for: Querying firewall logs, counting events.

**Goal:**
Given an alert, create a JSON plan of tasks.

**Output Format:**
Return ONLY valid JSON matching this schema:
{
  "thought_process": "Brief explanation...",
  "tasks": [
    {
      "agent": "intel",
      "action": "lookup_ip",
      "params": {"ip_address": "8.8.8.8"},
      "reasoning": "Check if IP is known malicious"
    },
    {
      "agent": "analyst",
      "action": "analyze_logs",
      "params": {"query": "..."},
      "reasoning": "Check for successful attacks"
    }
  ]
}`

const nextStepSystemPrompt = `You are a Senior SOC Manager conducting an iterative investigation.

**Available Agents:**
1. **Intel Agent**: IP reputation lookups (action "lookup_ip", params {"ip_address": "..."})
2. **Analyst Agent**: Log analysis queries (action "analyze_logs", params {"query": "..."})

**Your Task:**
Review the investigation so far and decide the next step.

**Options:**
1. **Continue**: More investigation needed. Provide new tasks.
2. **Stop**: We have enough evidence. No more tasks needed.

**Output Format:**
Return ONLY valid JSON:
{
  "decision": "continue" or "stop",
  "reasoning": "Why are we continuing/stopping?",
  "tasks": [
    {
      "agent": "intel",
      "action": "lookup_ip",
      "params": {"ip_address": "..."},
      "reasoning": "..."
    }
  ]
}

If decision is "stop", tasks should be an empty array [].`

const verdictSystemPrompt = `You are a Senior SOC Manager. Synthesize the following investigation data into a final threat verdict.

**Input Data:**
1. Original Alert
2. Intel Findings (IP reputation)
3. Analyst Findings (Log analysis)

**Goal:**
Determine the severity and provide a summary.

- **Critical**: Confirmed malicious IP + Successful attacks or Data Exfiltration.
- **High**: Confirmed malicious IP + High volume of failed attacks (Brute Force).
- **Medium**: Suspicious IP + Low volume / Scanning.
- **Low/Info**: Benign IP or standard noise.

**Output Format:**
Return ONLY valid JSON matching the ThreatVerdict schema:
{
  "severity": "critical|high|medium|low|info",
  "confidence": 0.95,
  "threat_summary": "Executive summary...",
  "evidence": ["Evidence 1", "Evidence 2"],
  "recommended_actions": ["Action 1", "Action 2"],
  "affected_assets": ["1.2.3.4", "UserX"]
}`

// Agent drives planning and synthesis through an LLM backend.
type Agent struct {
	client llm.LLMClient
	log    *slog.Logger
}

// NewAgent creates a manager agent.
func NewAgent(client llm.LLMClient, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{client: client, log: log}
}

// PlanInvestigation decomposes an alert into an initial task list. A
// backend failure degrades to an empty plan rather than an error so the
// loop can still run and synthesize what it has.
func (a *Agent) PlanInvestigation(ctx context.Context, alertText string) *datatypes.InvestigationPlan {
	raw, err := a.client.Generate(ctx, plannerSystemPrompt, "Alert: "+alertText, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.1),
		JSONOnly:    true,
	})
	if err != nil {
		a.log.Error("planning failed", "error", err)
		return &datatypes.InvestigationPlan{ThoughtProcess: "Planning failed, executing fallback.", Tasks: nil}
	}

	var plan datatypes.InvestigationPlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &plan); err != nil {
		a.log.Error("planner returned unparseable JSON", "error", err)
		return &datatypes.InvestigationPlan{ThoughtProcess: "Planning failed, executing fallback.", Tasks: nil}
	}
	return &plan
}

// PlanNextStep reviews the accumulated evidence and decides whether to
// keep investigating. A backend failure yields a stop decision so the
// loop never spins on a dead planner.
func (a *Agent) PlanNextStep(ctx context.Context, state *datatypes.InvestigationState) datatypes.NextStepDecision {
	var b strings.Builder
	fmt.Fprintf(&b, "**Original Alert:** %s\n\n", state.AlertText)
	fmt.Fprintf(&b, "**Investigation ID:** %s\n", state.ID)
	fmt.Fprintf(&b, "**Current Status:** %s\n\n", state.Status)

	if len(state.TasksHistory) > 0 {
		b.WriteString("**Tasks Completed So Far:**\n")
		for i, task := range state.TasksHistory {
			fmt.Fprintf(&b, "%d. Agent: %s, Action: %s\n", i+1, task.Agent, task.Action)
			out, _ := json.MarshalIndent(task.Output, "   ", "  ")
			fmt.Fprintf(&b, "   Result: %s\n\n", out)
		}
	} else {
		b.WriteString("**No tasks executed yet.**\n\n")
	}
	b.WriteString("**What should we do next?**")

	raw, err := a.client.Generate(ctx, nextStepSystemPrompt, b.String(), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.2),
		JSONOnly:    true,
	})
	if err != nil {
		a.log.Error("next step planning failed", "error", err)
		return datatypes.NextStepDecision{
			Decision:  datatypes.DecisionStop,
			Reasoning: fmt.Sprintf("Planning error: %v", err),
		}
	}

	var decision datatypes.NextStepDecision
	if err := json.Unmarshal([]byte(stripFences(raw)), &decision); err != nil {
		a.log.Error("next step decision was unparseable", "error", err)
		return datatypes.NextStepDecision{
			Decision:  datatypes.DecisionStop,
			Reasoning: fmt.Sprintf("Planning error: %v", err),
		}
	}

	a.log.Info("Manager decision", "decision", decision.Decision, "reasoning", decision.Reasoning)
	return decision
}

// SynthesizeVerdict rolls every task result into a final verdict. A
// backend failure yields a medium-severity zero-confidence verdict
// flagged for manual review.
func (a *Agent) SynthesizeVerdict(ctx context.Context, alertText string, history []datatypes.TaskRecord) *datatypes.ThreatVerdict {
	var b strings.Builder
	fmt.Fprintf(&b, "Original Alert: %s\n\nTask Results:\n", alertText)
	for _, rec := range history {
		out, _ := json.Marshal(rec.Output)
		fmt.Fprintf(&b, "- Agent: %s\n  Action: %s\n  Output: %s\n\n", rec.Agent, rec.Action, out)
	}

	raw, err := a.client.Generate(ctx, verdictSystemPrompt, b.String(), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.3),
		JSONOnly:    true,
	})
	if err != nil {
		return a.fallbackVerdict(err)
	}

	var verdict datatypes.ThreatVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdict); err != nil {
		return a.fallbackVerdict(err)
	}
	if !datatypes.ValidSeverity(verdict.Severity) {
		return a.fallbackVerdict(fmt.Errorf("invalid severity %q", verdict.Severity))
	}
	return &verdict
}

func (a *Agent) fallbackVerdict(err error) *datatypes.ThreatVerdict {
	a.log.Error("synthesis failed", "error", err)
	return &datatypes.ThreatVerdict{
		Severity:           datatypes.SeverityMedium,
		Confidence:         0.0,
		ThreatSummary:      fmt.Sprintf("Automated synthesis failed. Error: %v", err),
		Evidence:           []string{},
		RecommendedActions: []string{"Manual Review Required"},
		AffectedAssets:     []string{},
	}
}

// stripFences removes a markdown code fence around a JSON payload.
// Models occasionally wrap output in ```json blocks even when asked for
// raw JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
