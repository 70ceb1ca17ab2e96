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
	"sort"
	"strconv"
	"strings"
)

// The pipeline query language evaluated here is the only thing generated
// snippets can express. A snippet is a sequence of statements:
//
//	blocked = flows | filter action == "BLOCK"
//	result = blocked | group source_ip | count | top 3
//
// Each statement is `name = pipeline` or a bare pipeline. A pipeline
// starts from the dataset handle `flows` or a previously bound variable
// and chains stages with `|`:
//
//	filter <column> <op> <value>   op: == != > >= < <= contains
//	group <column>
//	count | sum <col> | avg <col> | min <col> | max <col>
//	top <n> | distinct <column> | limit <n>
//
// Lines starting with # are comments. There are no imports, no function
// calls, no I/O: the language has no capability surface beyond reading
// the dataset rows handed to Run.

// ValueKind discriminates interpreter values.
type ValueKind int

const (
	KindRows ValueKind = iota
	KindGroups
	KindPairs
	KindNumber
	KindStrings
)

// Pair is one aggregated group: a key and its numeric value.
type Pair struct {
	Key string
	Num float64
}

// Group is one bucket of rows sharing a column value. Buckets keep
// first-seen order so output is deterministic.
type Group struct {
	Key  string
	Rows []FlowRecord
}

// Value is the result of a pipeline: rows, grouped rows, aggregated
// pairs, a scalar, or a list of strings.
type Value struct {
	Kind    ValueKind
	Rows    []FlowRecord
	Groups  []Group
	Pairs   []Pair
	Num     float64
	Strings []string
}

// Format renders a Value as the normalized textual result returned to
// the analyst.
func (v Value) Format() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindRows:
		return fmt.Sprintf("%d rows", len(v.Rows))
	case KindGroups:
		return fmt.Sprintf("%d groups", len(v.Groups))
	case KindStrings:
		return strings.Join(v.Strings, ", ")
	case KindPairs:
		var b strings.Builder
		for i, p := range v.Pairs {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %s", p.Key, strconv.FormatFloat(p.Num, 'f', -1, 64))
		}
		return b.String()
	}
	return ""
}

func (k ValueKind) String() string {
	switch k {
	case KindRows:
		return "rows"
	case KindGroups:
		return "groups"
	case KindPairs:
		return "pairs"
	case KindNumber:
		return "number"
	case KindStrings:
		return "strings"
	}
	return "unknown"
}

// Outcome is the final namespace of a snippet run.
type Outcome struct {
	// Vars maps bound names to their values; Order preserves binding order.
	Vars  map[string]Value
	Order []string

	// Last is the value of the final statement, assigned or bare.
	Last *Value
}

// Interpreter evaluates snippets against one immutable dataset.
type Interpreter struct {
	dataset *Dataset
}

// NewInterpreter creates an interpreter bound to a dataset.
func NewInterpreter(dataset *Dataset) *Interpreter {
	return &Interpreter{dataset: dataset}
}

// Run evaluates a snippet. The context bounds evaluation: every stage
// checks for cancellation, and row scans check every few thousand rows,
// so a run never outlives its deadline by more than one batch.
func (in *Interpreter) Run(ctx context.Context, code string) (*Outcome, error) {
	outcome := &Outcome{Vars: make(map[string]Value)}

	lines := strings.Split(code, "\n")
	for lineNum, raw := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, pipeline, isAssign := splitAssignment(line)
		if isAssign {
			if name == "flows" {
				return nil, fmt.Errorf("line %d: cannot rebind the dataset handle 'flows'", lineNum+1)
			}
			if !isIdentifier(name) {
				return nil, fmt.Errorf("line %d: invalid variable name %q", lineNum+1, name)
			}
		}

		value, err := in.evalPipeline(ctx, pipeline, outcome.Vars)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum+1, err)
		}

		if isAssign {
			if _, seen := outcome.Vars[name]; !seen {
				outcome.Order = append(outcome.Order, name)
			}
			outcome.Vars[name] = value
		}
		v := value
		outcome.Last = &v
	}

	return outcome, nil
}

// splitAssignment separates `name = pipeline` from a bare pipeline. Only
// a top-level single `=` counts; `==` inside filters is left alone.
func splitAssignment(line string) (name, pipeline string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != '=' {
			continue
		}
		// Skip comparison operators.
		if i+1 < len(line) && line[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && (line[i-1] == '!' || line[i-1] == '<' || line[i-1] == '>' || line[i-1] == '=') {
			continue
		}
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
	}
	return "", line, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (in *Interpreter) evalPipeline(ctx context.Context, pipeline string, vars map[string]Value) (Value, error) {
	segments := strings.Split(pipeline, "|")
	source := strings.TrimSpace(segments[0])

	var value Value
	switch {
	case source == "flows":
		value = Value{Kind: KindRows, Rows: in.dataset.Records}
	default:
		bound, ok := vars[source]
		if !ok {
			return Value{}, fmt.Errorf("unknown source %q (expected 'flows' or a bound variable)", source)
		}
		value = bound
	}

	for _, segment := range segments[1:] {
		if err := ctx.Err(); err != nil {
			return Value{}, err
		}
		stage := strings.TrimSpace(segment)
		if stage == "" {
			return Value{}, fmt.Errorf("empty pipeline stage")
		}
		var err error
		value, err = applyStage(ctx, stage, value)
		if err != nil {
			return Value{}, err
		}
	}
	return value, nil
}

func applyStage(ctx context.Context, stage string, input Value) (Value, error) {
	tokens, err := tokenizeStage(stage)
	if err != nil {
		return Value{}, err
	}

	switch tokens[0] {
	case "filter":
		return applyFilter(ctx, tokens, input)
	case "group":
		return applyGroup(ctx, tokens, input)
	case "count":
		return applyCount(tokens, input)
	case "sum", "avg", "min", "max":
		return applyAggregate(tokens, input)
	case "top":
		return applyTop(tokens, input)
	case "distinct":
		return applyDistinct(tokens, input)
	case "limit":
		return applyLimit(tokens, input)
	}
	return Value{}, fmt.Errorf("unknown stage %q", tokens[0])
}

// tokenizeStage splits a stage on whitespace, keeping double-quoted
// strings (which may contain spaces) as single tokens.
func tokenizeStage(stage string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(stage) {
		for i < len(stage) && (stage[i] == ' ' || stage[i] == '\t') {
			i++
		}
		if i >= len(stage) {
			break
		}
		if stage[i] == '"' {
			end := strings.IndexByte(stage[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated string in stage %q", stage)
			}
			tokens = append(tokens, stage[i:i+end+2])
			i += end + 2
			continue
		}
		start := i
		for i < len(stage) && stage[i] != ' ' && stage[i] != '\t' {
			i++
		}
		tokens = append(tokens, stage[start:i])
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty pipeline stage")
	}
	return tokens, nil
}

func applyFilter(ctx context.Context, tokens []string, input Value) (Value, error) {
	if input.Kind != KindRows {
		return Value{}, fmt.Errorf("filter expects rows, got %s", input.Kind)
	}
	if len(tokens) != 4 {
		return Value{}, fmt.Errorf("filter expects: filter <column> <op> <value>")
	}
	col, op, lit := tokens[1], tokens[2], tokens[3]
	if !IsColumn(col) {
		return Value{}, fmt.Errorf("unknown column %q", col)
	}

	numeric := IsNumericColumn(col)
	var litNum float64
	litStr := strings.Trim(lit, `"`)
	if numeric && op != "contains" {
		v, err := strconv.ParseFloat(litStr, 64)
		if err != nil {
			return Value{}, fmt.Errorf("column %q is numeric but value %q is not a number", col, litStr)
		}
		litNum = v
	}

	match := func(r FlowRecord) (bool, error) {
		if numeric && op != "contains" {
			return compareNumbers(r.numericField(col), op, litNum)
		}
		return compareStrings(r.stringField(col), op, litStr)
	}

	var out []FlowRecord
	for i, r := range input.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
		}
		ok, err := match(r)
		if err != nil {
			return Value{}, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return Value{Kind: KindRows, Rows: out}, nil
}

func compareNumbers(have float64, op string, want float64) (bool, error) {
	switch op {
	case "==":
		return have == want, nil
	case "!=":
		return have != want, nil
	case ">":
		return have > want, nil
	case ">=":
		return have >= want, nil
	case "<":
		return have < want, nil
	case "<=":
		return have <= want, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func compareStrings(have, op, want string) (bool, error) {
	switch op {
	case "==":
		return have == want, nil
	case "!=":
		return have != want, nil
	case "contains":
		return strings.Contains(have, want), nil
	case ">", ">=", "<", "<=":
		return false, fmt.Errorf("operator %q requires a numeric column", op)
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func applyGroup(ctx context.Context, tokens []string, input Value) (Value, error) {
	if input.Kind != KindRows {
		return Value{}, fmt.Errorf("group expects rows, got %s", input.Kind)
	}
	if len(tokens) != 2 {
		return Value{}, fmt.Errorf("group expects: group <column>")
	}
	col := tokens[1]
	if !IsColumn(col) {
		return Value{}, fmt.Errorf("unknown column %q", col)
	}

	index := make(map[string]int)
	var groups []Group
	for i, r := range input.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
		}
		key := r.stringField(col)
		at, ok := index[key]
		if !ok {
			at = len(groups)
			index[key] = at
			groups = append(groups, Group{Key: key})
		}
		groups[at].Rows = append(groups[at].Rows, r)
	}
	return Value{Kind: KindGroups, Groups: groups}, nil
}

func applyCount(tokens []string, input Value) (Value, error) {
	if len(tokens) != 1 {
		return Value{}, fmt.Errorf("count takes no arguments")
	}
	switch input.Kind {
	case KindRows:
		return Value{Kind: KindNumber, Num: float64(len(input.Rows))}, nil
	case KindGroups:
		pairs := make([]Pair, 0, len(input.Groups))
		for _, g := range input.Groups {
			pairs = append(pairs, Pair{Key: g.Key, Num: float64(len(g.Rows))})
		}
		return Value{Kind: KindPairs, Pairs: pairs}, nil
	}
	return Value{}, fmt.Errorf("count expects rows or groups, got %s", input.Kind)
}

func applyAggregate(tokens []string, input Value) (Value, error) {
	if len(tokens) != 2 {
		return Value{}, fmt.Errorf("%s expects: %s <column>", tokens[0], tokens[0])
	}
	fn, col := tokens[0], tokens[1]
	if !IsColumn(col) {
		return Value{}, fmt.Errorf("unknown column %q", col)
	}
	if !IsNumericColumn(col) {
		return Value{}, fmt.Errorf("%s requires a numeric column, %q is text", fn, col)
	}

	switch input.Kind {
	case KindRows:
		return Value{Kind: KindNumber, Num: aggregateRows(fn, col, input.Rows)}, nil
	case KindGroups:
		pairs := make([]Pair, 0, len(input.Groups))
		for _, g := range input.Groups {
			pairs = append(pairs, Pair{Key: g.Key, Num: aggregateRows(fn, col, g.Rows)})
		}
		return Value{Kind: KindPairs, Pairs: pairs}, nil
	}
	return Value{}, fmt.Errorf("%s expects rows or groups, got %s", fn, input.Kind)
}

// aggregateRows handles the empty-rows edge cases: sum/avg of nothing is
// 0, min/max of nothing is 0 rather than an error so a filtered-to-empty
// pipeline degrades gracefully.
func aggregateRows(fn, col string, rows []FlowRecord) float64 {
	if len(rows) == 0 {
		return 0
	}
	acc := rows[0].numericField(col)
	switch fn {
	case "sum", "avg":
		total := 0.0
		for _, r := range rows {
			total += r.numericField(col)
		}
		if fn == "avg" {
			return total / float64(len(rows))
		}
		return total
	case "min":
		for _, r := range rows[1:] {
			if v := r.numericField(col); v < acc {
				acc = v
			}
		}
	case "max":
		for _, r := range rows[1:] {
			if v := r.numericField(col); v > acc {
				acc = v
			}
		}
	}
	return acc
}

func applyTop(tokens []string, input Value) (Value, error) {
	if input.Kind != KindPairs {
		return Value{}, fmt.Errorf("top expects aggregated pairs (use group + count/sum first), got %s", input.Kind)
	}
	n, err := parsePositiveInt(tokens, "top")
	if err != nil {
		return Value{}, err
	}

	pairs := make([]Pair, len(input.Pairs))
	copy(pairs, input.Pairs)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Num > pairs[j].Num })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return Value{Kind: KindPairs, Pairs: pairs}, nil
}

func applyDistinct(tokens []string, input Value) (Value, error) {
	if input.Kind != KindRows {
		return Value{}, fmt.Errorf("distinct expects rows, got %s", input.Kind)
	}
	if len(tokens) != 2 {
		return Value{}, fmt.Errorf("distinct expects: distinct <column>")
	}
	col := tokens[1]
	if !IsColumn(col) {
		return Value{}, fmt.Errorf("unknown column %q", col)
	}

	seen := make(map[string]bool)
	var out []string
	for _, r := range input.Rows {
		v := r.stringField(col)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return Value{Kind: KindStrings, Strings: out}, nil
}

func applyLimit(tokens []string, input Value) (Value, error) {
	n, err := parsePositiveInt(tokens, "limit")
	if err != nil {
		return Value{}, err
	}
	out := input
	switch input.Kind {
	case KindRows:
		if len(out.Rows) > n {
			out.Rows = out.Rows[:n]
		}
	case KindPairs:
		if len(out.Pairs) > n {
			out.Pairs = out.Pairs[:n]
		}
	case KindStrings:
		if len(out.Strings) > n {
			out.Strings = out.Strings[:n]
		}
	default:
		return Value{}, fmt.Errorf("limit expects rows, pairs, or strings, got %s", input.Kind)
	}
	return out, nil
}

func parsePositiveInt(tokens []string, stage string) (int, error) {
	if len(tokens) != 2 {
		return 0, fmt.Errorf("%s expects: %s <n>", stage, stage)
	}
	n, err := strconv.Atoi(tokens[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s expects a positive integer, got %q", stage, tokens[1])
	}
	return n, nil
}
