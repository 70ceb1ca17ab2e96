package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// JSONOnly asks the backend to constrain output to a single JSON object
	// when it supports a JSON response mode. Backends without native JSON
	// mode ignore it; callers must still strip markdown fences defensively.
	JSONOnly bool `json:"json_only"`
}

// LLMClient defines the standard interface for any LLM backend.
// The SOC agents (manager planning/synthesis, analyst code generation)
// only ever see this interface, never a concrete provider.
type LLMClient interface {
	Generate(ctx context.Context, system string, prompt string, params GenerationParams) (string, error)
}

// Float32Ptr is a convenience for building GenerationParams literals.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr is a convenience for building GenerationParams literals.
func IntPtr(v int) *int { return &v }
