// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AegisSOC/pkg/validation"
	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/observability"
)

// IntelLookup is the reputation capability the router dispatches to.
type IntelLookup interface {
	LookupIP(ctx context.Context, ipAddress string) datatypes.IPReputation
}

// LogAnalyzer is the log-analysis capability the router dispatches to.
type LogAnalyzer interface {
	Analyze(ctx context.Context, req datatypes.AnalystRequest) (*datatypes.AnalystResponse, error)
}

// TaskHandler executes one validated task and returns its output.
type TaskHandler func(ctx context.Context, task datatypes.AgentTask) (any, error)

type handlerKey struct {
	agent  string
	action string
}

// Router maps (agent, action) pairs to handlers. Every dispatch failure
// becomes an error TaskResult in the evidence trail; the router never
// returns a Go error and never lets a handler panic escape.
type Router struct {
	handlers map[handlerKey]TaskHandler
	log      *slog.Logger
}

// NewRouter builds the task registry over the two capabilities.
func NewRouter(intel IntelLookup, analyst LogAnalyzer, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{handlers: make(map[handlerKey]TaskHandler), log: log}

	r.register(datatypes.AgentIntel, "lookup_ip", func(ctx context.Context, task datatypes.AgentTask) (any, error) {
		ip, err := stringParam(task, "ip_address")
		if err != nil {
			return nil, err
		}
		if err := validation.ValidateIPAddress(ip); err != nil {
			return nil, fmt.Errorf("invalid ip_address: %w", err)
		}
		return intel.LookupIP(ctx, ip), nil
	})

	r.register(datatypes.AgentAnalyst, "analyze_logs", func(ctx context.Context, task datatypes.AgentTask) (any, error) {
		query, err := stringParam(task, "query")
		if err != nil {
			return nil, err
		}
		return analyst.Analyze(ctx, datatypes.AnalystRequest{Query: query})
	})

	return r
}

func (r *Router) register(agent, action string, h TaskHandler) {
	r.handlers[handlerKey{agent: agent, action: action}] = h
}

// Dispatch routes one task to its handler. Unknown (agent, action)
// pairs, bad params, handler errors, and handler panics all come back as
// status=error results so the investigation loop records them as
// evidence and moves on.
func (r *Router) Dispatch(ctx context.Context, task datatypes.AgentTask) (result datatypes.TaskResult) {
	result = datatypes.TaskResult{Agent: task.Agent, Action: task.Action}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task handler panicked", "agent", task.Agent, "action", task.Action, "panic", rec)
			result.Status = datatypes.TaskError
			result.Output = nil
			result.Error = fmt.Sprintf("task handler panicked: %v", rec)
		}
		observability.TasksTotal.WithLabelValues(task.Agent, task.Action, string(result.Status)).Inc()
	}()

	r.log.Info("Executing task", "agent", task.Agent, "action", task.Action)

	if err := task.Validate(); err != nil {
		result.Status = datatypes.TaskError
		result.Error = err.Error()
		return result
	}

	handler, ok := r.handlers[handlerKey{agent: task.Agent, action: task.Action}]
	if !ok {
		result.Status = datatypes.TaskError
		result.Error = fmt.Sprintf("unknown action %q for agent %q", task.Action, task.Agent)
		return result
	}

	output, err := handler(ctx, task)
	if err != nil {
		r.log.Error("task failed", "agent", task.Agent, "action", task.Action, "error", err)
		result.Status = datatypes.TaskError
		result.Error = err.Error()
		return result
	}

	result.Status = datatypes.TaskSuccess
	result.Output = output
	return result
}

func stringParam(task datatypes.AgentTask, name string) (string, error) {
	raw, ok := task.Params[name]
	if !ok {
		return "", fmt.Errorf("missing %q parameter", name)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", name)
	}
	return s, nil
}
