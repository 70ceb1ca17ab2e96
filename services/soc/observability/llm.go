// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"context"

	"github.com/AleutianAI/AegisSOC/services/llm"
)

// instrumentedLLM counts generations under a fixed purpose label.
type instrumentedLLM struct {
	inner   llm.LLMClient
	purpose string
}

// WrapLLM instruments a backend so every Generate call is counted under
// the given purpose (e.g. "manager", "analyst").
func WrapLLM(inner llm.LLMClient, purpose string) llm.LLMClient {
	return &instrumentedLLM{inner: inner, purpose: purpose}
}

func (c *instrumentedLLM) Generate(ctx context.Context, system string, prompt string, params llm.GenerationParams) (string, error) {
	out, err := c.inner.Generate(ctx, system, prompt, params)
	result := "success"
	if err != nil {
		result = "error"
	}
	LLMCalls.WithLabelValues(c.purpose, result).Inc()
	return out, err
}
