// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics for the SOC service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvestigationsTotal counts finished investigations by final status.
	InvestigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soc_investigations_total",
		Help: "Total investigations by final status",
	}, []string{"status"})

	// InvestigationDuration tracks end-to-end investigation latency.
	InvestigationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soc_investigation_duration_seconds",
		Help:    "End-to-end investigation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
	})

	// InvestigationLoops tracks ReAct loop iterations per investigation.
	InvestigationLoops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soc_investigation_loops",
		Help:    "ReAct loop iterations per investigation",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	// TasksTotal counts dispatched tasks by agent, action, and outcome.
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soc_tasks_total",
		Help: "Total dispatched tasks by agent, action, and status",
	}, []string{"agent", "action", "status"})

	// SandboxExecutions counts sandbox runs by outcome.
	SandboxExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soc_sandbox_executions_total",
		Help: "Total sandbox executions by outcome",
	}, []string{"outcome"})

	// SandboxViolations counts snippets rejected by the static guard.
	SandboxViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soc_sandbox_violations_total",
		Help: "Total snippets rejected by the forbidden-pattern guard",
	})

	// SandboxDuration tracks sandbox execution latency.
	SandboxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soc_sandbox_duration_seconds",
		Help:    "Sandbox execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	})

	// LLMCalls counts backend generations by purpose and result.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soc_llm_calls_total",
		Help: "Total LLM generations by purpose and result",
	}, []string{"purpose", "result"})
)
