// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDataset builds a small fixed dataset: 4 blocked SSH attempts from
// one attacker, 2 allowed DNS lookups, and 1 large allowed transfer.
func testDataset() *Dataset {
	return &Dataset{
		Path: "test://fixture",
		Records: []FlowRecord{
			{Timestamp: "2025-06-01T10:00:00Z", SourceIP: "89.248.172.16", DestIP: "10.0.0.5", SourcePort: 51001, DestPort: 22, Protocol: "TCP", Action: "BLOCK", BytesSent: 120, BytesReceived: 0, HTTPStatus: 0, SessionID: "s1", AlertType: "brute_force"},
			{Timestamp: "2025-06-01T10:00:01Z", SourceIP: "89.248.172.16", DestIP: "10.0.0.5", SourcePort: 51002, DestPort: 22, Protocol: "TCP", Action: "BLOCK", BytesSent: 118, BytesReceived: 0, HTTPStatus: 0, SessionID: "s2", AlertType: "brute_force"},
			{Timestamp: "2025-06-01T10:00:02Z", SourceIP: "89.248.172.16", DestIP: "10.0.0.5", SourcePort: 51003, DestPort: 22, Protocol: "TCP", Action: "BLOCK", BytesSent: 122, BytesReceived: 0, HTTPStatus: 0, SessionID: "s3", AlertType: "brute_force"},
			{Timestamp: "2025-06-01T10:00:03Z", SourceIP: "89.248.172.16", DestIP: "10.0.0.5", SourcePort: 51004, DestPort: 22, Protocol: "TCP", Action: "BLOCK", BytesSent: 121, BytesReceived: 0, HTTPStatus: 0, SessionID: "s4", AlertType: "brute_force"},
			{Timestamp: "2025-06-01T10:01:00Z", SourceIP: "10.0.0.12", DestIP: "8.8.8.8", SourcePort: 40001, DestPort: 53, Protocol: "UDP", Action: "ALLOW", BytesSent: 64, BytesReceived: 128, HTTPStatus: 0, SessionID: "s5", AlertType: "benign"},
			{Timestamp: "2025-06-01T10:01:30Z", SourceIP: "10.0.0.12", DestIP: "1.1.1.1", SourcePort: 40002, DestPort: 53, Protocol: "UDP", Action: "ALLOW", BytesSent: 64, BytesReceived: 130, HTTPStatus: 0, SessionID: "s6", AlertType: "benign"},
			{Timestamp: "2025-06-01T10:02:00Z", SourceIP: "10.0.0.33", DestIP: "185.220.101.17", SourcePort: 40100, DestPort: 443, Protocol: "TCP", Action: "ALLOW", BytesSent: 5000000, BytesReceived: 2048, UserAgent: "curl/8.0", RequestPath: "/upload", HTTPStatus: 200, SessionID: "s7", AlertType: "data_exfiltration"},
		},
	}
}

func runSnippet(t *testing.T, code string) *Outcome {
	t.Helper()
	outcome, err := NewInterpreter(testDataset()).Run(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	return outcome
}

// ===== Pipeline Evaluation Tests =====

func TestRun_FilterAndCount(t *testing.T) {
	outcome := runSnippet(t, `result = flows | filter action == "BLOCK" | count`)
	assert.Equal(t, "4", outcome.Vars["result"].Format())
}

func TestRun_FilterNumericComparison(t *testing.T) {
	outcome := runSnippet(t, `result = flows | filter bytes_sent > 1000000 | count`)
	assert.Equal(t, "1", outcome.Vars["result"].Format())
}

func TestRun_ChainedVariables(t *testing.T) {
	code := `blocked = flows | filter action == "BLOCK"
result = blocked | filter dest_port == 22 | count`
	outcome := runSnippet(t, code)
	assert.Equal(t, "4", outcome.Vars["result"].Format())
	assert.Equal(t, []string{"blocked", "result"}, outcome.Order)
}

func TestRun_GroupCountTop(t *testing.T) {
	code := `result = flows | group source_ip | count | top 2`
	outcome := runSnippet(t, code)
	v := outcome.Vars["result"]
	require.Equal(t, KindPairs, v.Kind)
	require.Len(t, v.Pairs, 2)
	assert.Equal(t, "89.248.172.16", v.Pairs[0].Key)
	assert.Equal(t, float64(4), v.Pairs[0].Num)
	assert.Equal(t, "10.0.0.12", v.Pairs[1].Key)
}

func TestRun_GroupSum(t *testing.T) {
	code := `result = flows | group source_ip | sum bytes_sent | top 1`
	outcome := runSnippet(t, code)
	v := outcome.Vars["result"]
	require.Len(t, v.Pairs, 1)
	assert.Equal(t, "10.0.0.33", v.Pairs[0].Key)
	assert.Equal(t, float64(5000000), v.Pairs[0].Num)
}

func TestRun_AvgMinMax(t *testing.T) {
	outcome := runSnippet(t, `result = flows | filter action == "ALLOW" | avg bytes_received`)
	avg := outcome.Vars["result"]
	require.Equal(t, KindNumber, avg.Kind)
	assert.InDelta(t, (128+130+2048)/3.0, avg.Num, 0.001)

	outcome = runSnippet(t, `result = flows | max bytes_sent`)
	assert.Equal(t, float64(5000000), outcome.Vars["result"].Num)

	outcome = runSnippet(t, `result = flows | min source_port`)
	assert.Equal(t, float64(40001), outcome.Vars["result"].Num)
}

func TestRun_Distinct(t *testing.T) {
	outcome := runSnippet(t, `result = flows | distinct protocol`)
	assert.Equal(t, []string{"TCP", "UDP"}, outcome.Vars["result"].Strings)
}

func TestRun_DistinctPreservesFirstSeenOrder(t *testing.T) {
	outcome := runSnippet(t, `result = flows | distinct source_ip`)
	assert.Equal(t, []string{"89.248.172.16", "10.0.0.12", "10.0.0.33"}, outcome.Vars["result"].Strings)
}

func TestRun_Limit(t *testing.T) {
	outcome := runSnippet(t, `result = flows | limit 3 | count`)
	assert.Equal(t, "3", outcome.Vars["result"].Format())
}

func TestRun_Contains(t *testing.T) {
	outcome := runSnippet(t, `result = flows | filter request_path contains "upload" | count`)
	assert.Equal(t, "1", outcome.Vars["result"].Format())
}

func TestRun_CommentsAndBlankLines(t *testing.T) {
	code := `# count total flows

result = flows | count
`
	outcome := runSnippet(t, code)
	assert.Equal(t, "7", outcome.Vars["result"].Format())
}

func TestRun_BarePipelineSetsLast(t *testing.T) {
	outcome := runSnippet(t, `flows | filter action == "BLOCK" | count`)
	require.NotNil(t, outcome.Last)
	assert.Equal(t, "4", outcome.Last.Format())
	assert.Empty(t, outcome.Order)
}

func TestRun_EmptyFilterResultAggregatesToZero(t *testing.T) {
	outcome := runSnippet(t, `result = flows | filter source_ip == "203.0.113.9" | sum bytes_sent`)
	assert.Equal(t, "0", outcome.Vars["result"].Format())
}

// ===== Error Reporting Tests =====

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr string
	}{
		{"unknown column", `result = flows | filter src == "x"`, `unknown column "src"`},
		{"unknown stage", `result = flows | explode`, `unknown stage "explode"`},
		{"unknown source", `result = packets | count`, `unknown source "packets"`},
		{"rebind flows", `flows = flows | count`, "cannot rebind the dataset handle"},
		{"top before aggregation", `result = flows | top 3`, "top expects aggregated pairs"},
		{"text column aggregation", `result = flows | sum protocol`, "requires a numeric column"},
		{"ordering on text column", `result = flows | filter protocol > "TCP"`, "requires a numeric column"},
		{"bad numeric literal", `result = flows | filter dest_port == abc`, "is not a number"},
		{"bad limit", `result = flows | limit zero`, "positive integer"},
		{"unterminated string", `result = flows | filter action == "BLOCK`, "unterminated string"},
		{"empty stage", `result = flows | | count`, "empty pipeline stage"},
		{"invalid variable name", `9lives = flows | count`, "invalid variable name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterpreter(testDataset()).Run(context.Background(), tt.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_ErrorsIncludeLineNumber(t *testing.T) {
	code := `blocked = flows | filter action == "BLOCK"
result = blocked | explode`
	_, err := NewInterpreter(testDataset()).Run(context.Background(), code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2:")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInterpreter(testDataset()).Run(ctx, `result = flows | count`)
	assert.ErrorIs(t, err, context.Canceled)
}

// ===== Value Formatting Tests =====

func TestValueFormat(t *testing.T) {
	assert.Equal(t, "42", Value{Kind: KindNumber, Num: 42}.Format())
	assert.Equal(t, "2.5", Value{Kind: KindNumber, Num: 2.5}.Format())
	assert.Equal(t, "a, b", Value{Kind: KindStrings, Strings: []string{"a", "b"}}.Format())
	assert.Equal(t, "ip1: 4\nip2: 2", Value{Kind: KindPairs, Pairs: []Pair{{"ip1", 4}, {"ip2", 2}}}.Format())
	assert.Equal(t, "3 rows", Value{Kind: KindRows, Rows: make([]FlowRecord, 3)}.Format())
}
