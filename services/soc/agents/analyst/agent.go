// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analyst turns natural-language questions about firewall logs
// into sandbox query snippets, executes them, self-corrects once on
// failure, and interprets the result back into prose.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AegisSOC/services/codeguard"
	"github.com/AleutianAI/AegisSOC/services/llm"
	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/sandbox"
)

const codegenSystemPrompt = `You are an expert cybersecurity data analyst specializing in network security logs.

Your job is to write query pipelines to answer questions about firewall logs.

**Dataset Schema:**
The dataset 'flows' contains these columns:
- timestamp (text): ISO datetime format
- source_ip (text): Source IPv4 address
- dest_ip (text): Destination IPv4 address
- source_port (number): Source port number
- dest_port (number): Destination port number
- protocol (text): TCP or UDP
- action (text): ALLOW or BLOCK
- bytes_sent (number): Bytes sent by source
- bytes_received (number): Bytes received by source
- user_agent (text): HTTP user agent (or empty)
- request_path (text): HTTP path (or empty)
- http_status (number): HTTP status code (or 0)
- session_id (text): Session identifier
- alert_type (text): benign, sql_injection, brute_force, port_scan, data_exfiltration, dos_attack

**Query Language:**
Each line is 'name = pipeline' or a bare pipeline. A pipeline starts from 'flows'
or a previously assigned variable and chains stages with '|':
- filter <column> <op> <value>   ops: == != > >= < <= contains (quote text values)
- group <column>                 bucket rows by a column
- count                          rows -> total; groups -> per-key counts
- sum <col> / avg <col> / min <col> / max <col>   numeric aggregation
- top <n>                        keep the n largest aggregated entries
- distinct <column>              unique values of a column
- limit <n>                      truncate
Lines starting with # are comments.

**CRITICAL RULES:**
1. The dataset is already loaded as 'flows' - there are no imports or function calls
2. Store your final result in a variable called 'result'
3. Use ONLY the stages listed above
4. Keep snippets under 10 lines
5. Return ONLY the query snippet, no explanations

**Example Queries:**

Query: "How many total attacks?"
Code:

result = flows | filter alert_type != "benign" | count

Query: "Which IP has the most brute force attempts?"
Code:

brute = flows | filter alert_type == "brute_force"
result = brute | group source_ip | count | top 1

Query: "Average bytes sent in SQL injection attacks"
Code:

result = flows | filter alert_type == "sql_injection" | avg bytes_sent

Now generate a snippet for the following query. Return ONLY the query snippet, nothing else.`

// maxRetries bounds the self-correction loop to one corrected attempt.
const maxRetries = 1

// Agent answers log-analysis queries via the sandbox.
type Agent struct {
	client  llm.LLMClient
	loader  *sandbox.Loader
	guard   *codeguard.Guard
	timeout time.Duration

	// defaultDataset is used when a request names no dataset path.
	defaultDataset string
	log            *slog.Logger
}

// NewAgent creates an analyst agent. timeout bounds each sandbox run;
// zero means the sandbox default.
func NewAgent(client llm.LLMClient, loader *sandbox.Loader, guard *codeguard.Guard, defaultDataset string, timeout time.Duration, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		client:         client,
		loader:         loader,
		guard:          guard,
		timeout:        timeout,
		defaultDataset: defaultDataset,
		log:            log,
	}
}

// Analyze runs the full workflow: load dataset, generate a snippet,
// execute it, self-correct once if execution fails, then interpret the
// output. Only dataset and generation failures surface as errors; a
// snippet that fails twice produces a degraded low-confidence response.
func (a *Agent) Analyze(ctx context.Context, req datatypes.AnalystRequest) (*datatypes.AnalystResponse, error) {
	path := req.DatasetPath
	if path == "" {
		path = a.defaultDataset
	}
	dataset, err := a.loader.Load(path)
	if err != nil {
		return nil, err
	}
	executor := sandbox.NewExecutor(a.guard, dataset, a.timeout, a.log)

	code, err := a.generateCode(ctx, req.Query, "")
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	execResult := executor.Execute(ctx, code)

	for retry := 0; !execResult.Success && retry < maxRetries; retry++ {
		a.log.Warn("analysis snippet failed, self-correcting", "query", req.Query, "error", execResult.Error)
		code, err = a.generateCode(ctx, req.Query, execResult.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		execResult = executor.Execute(ctx, code)
	}

	answer := ""
	confidence := ""
	if execResult.Success {
		answer, confidence = a.interpretResult(ctx, req.Query, code, execResult.Output)
	} else {
		answer = fmt.Sprintf("Unable to analyze: %s", execResult.Error)
		confidence = "low"
	}

	return &datatypes.AnalystResponse{
		Query:                 req.Query,
		GeneratedCode:         code,
		ExecutionResult:       execResult,
		NaturalLanguageAnswer: answer,
		Confidence:            confidence,
		DataSummary: datatypes.DataSummary{
			TotalRecords: dataset.Len(),
			DatasetPath:  path,
		},
	}, nil
}

// generateCode asks the model for a query snippet. retryContext carries
// the previous execution error so the model can fix its own output.
func (a *Agent) generateCode(ctx context.Context, query, retryContext string) (string, error) {
	userMessage := "Query: " + query
	if retryContext != "" {
		userMessage += fmt.Sprintf("\n\nPrevious attempt failed with error:\n%s\n\nPlease fix the code.", retryContext)
	}

	raw, err := a.client.Generate(ctx, codegenSystemPrompt, userMessage, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.1),
		MaxTokens:   llm.IntPtr(500),
	})
	if err != nil {
		return "", err
	}
	return stripCodeFences(raw), nil
}

// interpretResult turns a raw execution output into a 1-2 sentence
// answer with a confidence rating. Interpretation failures degrade to a
// literal "Analysis complete" answer rather than erroring.
func (a *Agent) interpretResult(ctx context.Context, query, code, output string) (answer, confidence string) {
	prompt := fmt.Sprintf(`Given this security log analysis:

User Question: %s
Code Executed: %s
Result: %s

Provide a clear, concise answer to the user's question in 1-2 sentences.
If the result is a number, include context. If it's a list, summarize key findings.
Be direct and professional.

Also rate your confidence: high, medium, or low.

Return your response as JSON:
{"answer": "your answer here", "confidence": "high/medium/low"}`, query, code, output)

	raw, err := a.client.Generate(ctx, "", prompt, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.3),
		MaxTokens:   llm.IntPtr(300),
		JSONOnly:    true,
	})
	if err != nil {
		a.log.Warn("result interpretation failed", "error", err)
		return fmt.Sprintf("Analysis complete. Result: %s", output), "medium"
	}

	var parsed struct {
		Answer     string `json:"answer"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil || parsed.Answer == "" {
		return fmt.Sprintf("Analysis complete. Result: %s", output), "medium"
	}
	return parsed.Answer, parsed.Confidence
}

// stripCodeFences removes markdown fences around generated snippets or
// JSON payloads.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	for _, tag := range []string{"```json", "```python", "```text", "```"} {
		if strings.HasPrefix(s, tag) {
			s = strings.TrimPrefix(s, tag)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
