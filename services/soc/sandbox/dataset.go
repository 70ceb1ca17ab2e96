// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sandbox evaluates AI-generated analysis snippets against an
// in-memory firewall log dataset under security and time constraints.
//
// The evaluation surface is a purpose-built pipeline query language
// interpreted in-process with no ambient capabilities: snippets can read
// the dataset and nothing else. A regex denylist (services/codeguard)
// gates every snippet before evaluation, and a hard wall-clock budget
// bounds evaluation itself.
package sandbox

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// ErrDatasetNotFound is returned when the CSV path does not exist.
var ErrDatasetNotFound = errors.New("dataset not found")

// FlowRecord is one firewall log line. The schema is fixed; the loader
// rejects files missing any column.
type FlowRecord struct {
	Timestamp     string
	SourceIP      string
	DestIP        string
	SourcePort    int
	DestPort      int
	Protocol      string
	Action        string // ALLOW or BLOCK
	BytesSent     float64
	BytesReceived float64
	UserAgent     string
	RequestPath   string
	HTTPStatus    int
	SessionID     string
	AlertType     string // benign, sql_injection, brute_force, port_scan, data_exfiltration, dos_attack
}

// Columns queryable from snippets, in schema order.
var Columns = []string{
	"timestamp", "source_ip", "dest_ip", "source_port", "dest_port",
	"protocol", "action", "bytes_sent", "bytes_received", "user_agent",
	"request_path", "http_status", "session_id", "alert_type",
}

// numericColumns holds the columns compared and aggregated as numbers.
var numericColumns = map[string]bool{
	"source_port": true, "dest_port": true, "bytes_sent": true,
	"bytes_received": true, "http_status": true,
}

// IsColumn reports whether name is part of the schema.
func IsColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IsNumericColumn reports whether name holds numeric values.
func IsNumericColumn(name string) bool { return numericColumns[name] }

// stringField returns the textual value of a column.
func (r FlowRecord) stringField(col string) string {
	switch col {
	case "timestamp":
		return r.Timestamp
	case "source_ip":
		return r.SourceIP
	case "dest_ip":
		return r.DestIP
	case "source_port":
		return strconv.Itoa(r.SourcePort)
	case "dest_port":
		return strconv.Itoa(r.DestPort)
	case "protocol":
		return r.Protocol
	case "action":
		return r.Action
	case "bytes_sent":
		return strconv.FormatFloat(r.BytesSent, 'f', -1, 64)
	case "bytes_received":
		return strconv.FormatFloat(r.BytesReceived, 'f', -1, 64)
	case "user_agent":
		return r.UserAgent
	case "request_path":
		return r.RequestPath
	case "http_status":
		return strconv.Itoa(r.HTTPStatus)
	case "session_id":
		return r.SessionID
	case "alert_type":
		return r.AlertType
	}
	return ""
}

// numericField returns the numeric value of a column.
func (r FlowRecord) numericField(col string) float64 {
	switch col {
	case "source_port":
		return float64(r.SourcePort)
	case "dest_port":
		return float64(r.DestPort)
	case "bytes_sent":
		return r.BytesSent
	case "bytes_received":
		return r.BytesReceived
	case "http_status":
		return float64(r.HTTPStatus)
	}
	return 0
}

// Dataset is an immutable, read-only snapshot of one firewall log CSV.
// Records are never mutated after load, so a Dataset is safe for
// concurrent use by any number of investigations.
type Dataset struct {
	Path    string
	Records []FlowRecord
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// LoadCSV reads a firewall log CSV into memory. The header row must
// contain every schema column; extra columns are ignored.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("dataset %s is missing column %q", path, col)
		}
	}

	var records []FlowRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset %s line %d: %w", path, line, err)
		}
		records = append(records, FlowRecord{
			Timestamp:     row[index["timestamp"]],
			SourceIP:      row[index["source_ip"]],
			DestIP:        row[index["dest_ip"]],
			SourcePort:    atoiLenient(row[index["source_port"]]),
			DestPort:      atoiLenient(row[index["dest_port"]]),
			Protocol:      row[index["protocol"]],
			Action:        row[index["action"]],
			BytesSent:     atofLenient(row[index["bytes_sent"]]),
			BytesReceived: atofLenient(row[index["bytes_received"]]),
			UserAgent:     row[index["user_agent"]],
			RequestPath:   row[index["request_path"]],
			HTTPStatus:    atoiLenient(row[index["http_status"]]),
			SessionID:     row[index["session_id"]],
			AlertType:     row[index["alert_type"]],
		})
	}

	slog.Info("Loaded firewall log dataset", "path", path, "records", len(records))
	return &Dataset{Path: path, Records: records}, nil
}

// Generated logs occasionally carry "N/A" in numeric columns; treat
// anything unparseable as zero rather than failing the whole load.
func atoiLenient(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func atofLenient(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Loader caches datasets by path. Each distinct path is read from disk
// at most once; the cached Dataset is shared read-only across all
// concurrent investigations.
type Loader struct {
	mu    sync.RWMutex
	cache map[string]*Dataset
}

// NewLoader creates an empty dataset cache.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*Dataset)}
}

// Load returns the cached dataset for path, reading it on first use.
func (l *Loader) Load(path string) (*Dataset, error) {
	l.mu.RLock()
	ds, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return ds, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Another goroutine may have loaded it while we waited for the lock.
	if ds, ok := l.cache[path]; ok {
		return ds, nil
	}
	ds, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	l.cache[path] = ds
	return ds, nil
}
