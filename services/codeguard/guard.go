// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package codeguard is the static gate in front of the analysis sandbox.
//
// It scans AI-generated snippets against an embedded, immutable denylist
// covering OS access, process spawning, dynamic evaluation, attribute
// introspection, and file-handle opening. A match means the snippet is
// rejected without ever being evaluated.
//
// Regex denylisting is a known-incomplete boundary on its own; the sandbox
// interpreter it guards carries no ambient capabilities, so the guard is
// one layer of two, not the whole defense.
package codeguard

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AegisSOC/services/codeguard/enforcement"
	"gopkg.in/yaml.v3"
)

// Guard holds the compiled denylist and provides scan/validate operations
// over generated snippets. Safe for concurrent use after construction.
type Guard struct {
	Classifiers []Classification
}

// ViolationError is returned by Validate when a snippet matches the denylist.
// The message carries the pattern id and description so the self-correction
// pass can tell the code generator exactly what was rejected.
type ViolationError struct {
	Finding Finding
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("forbidden pattern %s (%s) matched %q on line %d",
		e.Finding.PatternId, e.Finding.PatternDescription,
		e.Finding.MatchedContent, e.Finding.LineNumber)
}

// NewGuard initializes a Guard from the denylist embedded in the binary.
//
// It unmarshals the embedded YAML, compiles all regex patterns, and sorts
// classifications by priority so the highest-severity category reports
// first. Returns an error if the embedded YAML is malformed or contains
// an invalid regex.
func NewGuard() (*Guard, error) {
	var denylist DenylistFile
	if err := yaml.Unmarshal(enforcement.ForbiddenPatterns, &denylist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded denylist: %w", err)
	}

	if err := denylist.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}

	denylist.SortByPriority()

	return &Guard{Classifiers: denylist.Classifications}, nil
}

// Scan audits a snippet line by line and reports every denylist hit with
// line numbers and the matched text. Intended for diagnostics and tests;
// the sandbox hot path uses Validate.
func (g *Guard) Scan(code string) []Finding {
	var findings []Finding
	lines := strings.Split(code, "\n")
	for lineNum, line := range lines {
		for _, classifier := range g.Classifiers {
			for _, pattern := range classifier.Patterns {
				match := pattern.compiledPattern.FindString(line)
				if match != "" {
					findings = append(findings, Finding{
						LineNumber:         lineNum + 1,
						MatchedContent:     strings.TrimSpace(match),
						ClassificationName: classifier.Name,
						PatternId:          pattern.Id,
						PatternDescription: pattern.Description,
						Confidence:         pattern.Confidence,
					})
				}
			}
		}
	}
	return findings
}

// Validate returns nil if the snippet is clean, or a *ViolationError
// describing the first (highest-priority) denylist hit.
func (g *Guard) Validate(code string) error {
	for _, classifier := range g.Classifiers {
		for _, pattern := range classifier.Patterns {
			loc := pattern.compiledPattern.FindStringIndex(code)
			if loc == nil {
				continue
			}
			line := 1 + strings.Count(code[:loc[0]], "\n")
			return &ViolationError{Finding: Finding{
				LineNumber:         line,
				MatchedContent:     strings.TrimSpace(code[loc[0]:loc[1]]),
				ClassificationName: classifier.Name,
				PatternId:          pattern.Id,
				PatternDescription: pattern.Description,
				Confidence:         pattern.Confidence,
			}}
		}
	}
	return nil
}
