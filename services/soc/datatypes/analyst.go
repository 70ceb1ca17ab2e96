// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// AnalystRequest asks the analyst to answer a natural-language question
// about the firewall log dataset.
type AnalystRequest struct {
	Query string `json:"query" binding:"required"`

	// DatasetPath overrides the default firewall log CSV. Optional.
	DatasetPath string `json:"dataset_path,omitempty"`
}

// ExecutionResult is the normalized outcome of one sandbox run, success
// or failure. ExecutionTimeMs is always populated.
type ExecutionResult struct {
	Success         bool    `json:"success"`
	Output          string  `json:"output,omitempty"`
	Error           string  `json:"error,omitempty"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	CodeExecuted    string  `json:"code_executed"`
}

// DataSummary describes the dataset an analysis ran against.
type DataSummary struct {
	TotalRecords int    `json:"total_records"`
	DatasetPath  string `json:"dataset_path"`
}

// AnalystResponse is the full answer to an analysis query: the generated
// snippet, its execution result, and the natural-language interpretation.
type AnalystResponse struct {
	Query           string          `json:"query"`
	GeneratedCode   string          `json:"generated_code"`
	ExecutionResult ExecutionResult `json:"execution_result"`

	// NaturalLanguageAnswer is a 1-2 sentence answer to the query. When
	// execution failed even after self-correction it is a degraded
	// "Unable to analyze" message.
	NaturalLanguageAnswer string `json:"natural_language_answer"`

	// Confidence is high, medium, or low. Degraded answers are always low.
	Confidence string `json:"confidence"`

	DataSummary DataSummary `json:"data_summary"`
}
