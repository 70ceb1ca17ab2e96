// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AegisSOC/services/codeguard"
	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/observability"
)

// DefaultTimeout bounds a single snippet evaluation.
const DefaultTimeout = 5 * time.Second

// Executor runs analyst-generated snippets against a dataset. Every run
// goes through two gates: the pattern guard rejects anything that looks
// like host access before evaluation starts, and a hard deadline kills
// evaluation that runs long.
type Executor struct {
	guard   *codeguard.Guard
	dataset *Dataset
	timeout time.Duration
	log     *slog.Logger
}

// NewExecutor builds an executor for one dataset. A zero timeout means
// DefaultTimeout.
func NewExecutor(guard *codeguard.Guard, dataset *Dataset, timeout time.Duration, log *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{guard: guard, dataset: dataset, timeout: timeout, log: log}
}

// Dataset returns the dataset this executor evaluates against.
func (e *Executor) Dataset() *Dataset { return e.dataset }

// Execute validates and evaluates a snippet. The returned result always
// carries the snippet and wall-clock duration, whether or not evaluation
// succeeded. Rejected snippets are never evaluated.
func (e *Executor) Execute(ctx context.Context, code string) datatypes.ExecutionResult {
	start := time.Now()
	result := datatypes.ExecutionResult{CodeExecuted: code}

	if err := e.guard.Validate(code); err != nil {
		result.Error = fmt.Sprintf("security violation: %v", err)
		result.ExecutionTimeMs = millisSince(start)
		e.log.Warn("snippet rejected by guard", "error", err)
		observability.SandboxViolations.Inc()
		observability.SandboxExecutions.WithLabelValues("violation").Inc()
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type evalResult struct {
		outcome *Outcome
		err     error
	}
	done := make(chan evalResult, 1)
	go func() {
		outcome, err := NewInterpreter(e.dataset).Run(runCtx, code)
		done <- evalResult{outcome, err}
	}()

	var outcome *Outcome
	select {
	case r := <-done:
		outcome = r.outcome
		if r.err != nil {
			if runCtx.Err() != nil {
				result.Error = fmt.Sprintf("execution timed out after %s", e.timeout)
				observability.SandboxExecutions.WithLabelValues("timeout").Inc()
			} else {
				result.Error = r.err.Error()
				observability.SandboxExecutions.WithLabelValues("error").Inc()
			}
			result.ExecutionTimeMs = millisSince(start)
			observability.SandboxDuration.Observe(time.Since(start).Seconds())
			return result
		}
	case <-runCtx.Done():
		result.Error = fmt.Sprintf("execution timed out after %s", e.timeout)
		result.ExecutionTimeMs = millisSince(start)
		e.log.Warn("snippet evaluation timed out", "timeout", e.timeout)
		observability.SandboxExecutions.WithLabelValues("timeout").Inc()
		observability.SandboxDuration.Observe(time.Since(start).Seconds())
		return result
	}

	result.Success = true
	result.Output = extractOutput(outcome)
	result.ExecutionTimeMs = millisSince(start)
	observability.SandboxExecutions.WithLabelValues("success").Inc()
	observability.SandboxDuration.Observe(time.Since(start).Seconds())
	return result
}

func millisSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// extractOutput picks the value to report, in priority order: a variable
// named `result`, then the value of the final statement, then the first
// variable bound by the snippet.
func extractOutput(outcome *Outcome) string {
	if v, ok := outcome.Vars["result"]; ok {
		return v.Format()
	}
	if outcome.Last != nil {
		return outcome.Last.Format()
	}
	for _, name := range outcome.Order {
		return outcome.Vars[name].Format()
	}
	return "Code executed successfully (no output)"
}
