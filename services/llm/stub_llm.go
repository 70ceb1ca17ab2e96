package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubClient is a deterministic LLMClient used in tests and in the
// "stub" backend mode, where no model endpoint is available. Responses
// are returned in the order they were queued; once the script runs out,
// every call returns an error so a runaway loop fails loudly instead of
// looping forever.
type StubClient struct {
	mu        sync.Mutex
	responses []string
	calls     []StubCall
	err       error
}

// StubCall records one Generate invocation for assertions.
type StubCall struct {
	System string
	Prompt string
	Params GenerationParams
}

func NewStubClient(responses ...string) *StubClient {
	return &StubClient{responses: responses}
}

// FailWith makes every subsequent Generate call return err.
func (s *StubClient) FailWith(err error) *StubClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Enqueue appends responses to the script.
func (s *StubClient) Enqueue(responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Calls returns a copy of the recorded invocations.
func (s *StubClient) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Generate implements the LLMClient interface
func (s *StubClient) Generate(ctx context.Context, system string, prompt string,
	params GenerationParams) (string, error) {

	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, StubCall{System: system, Prompt: prompt, Params: params})
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("stub LLM script exhausted after %d calls", len(s.calls))
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}
