// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intel resolves IP reputation for investigations. Lookups try
// the AbuseIPDB API when a key is configured and fall back to a small
// built-in database of well-known addresses, so investigations stay
// functional with no external connectivity.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
)

const defaultBaseURL = "https://api.abuseipdb.com/api/v2"

// mockDB is the built-in reputation table used when no API key is set
// or the provider is unreachable.
var mockDB = map[string]datatypes.IPReputation{
	"89.248.172.16": {
		Reputation:  datatypes.ReputationMalicious,
		Category:    "brute_force_attacker",
		ThreatScore: 95,
		Details:     "Known SSH/RDP brute force scanner reported by multiple sources.",
		Geolocation: map[string]any{"country": "NL", "isp": "BadHosting Corp"},
	},
	"185.220.101.17": {
		Reputation:  datatypes.ReputationMalicious,
		Category:    "tor_exit_node",
		ThreatScore: 85,
		Details:     "Active TOR network exit node. Traffic is anonymized.",
		Geolocation: map[string]any{"country": "DE", "isp": "Tor Exit Service"},
	},
	"8.8.8.8": {
		Reputation:  datatypes.ReputationBenign,
		Category:    "dns_server",
		ThreatScore: 0,
		Details:     "Google Public DNS. Trusted infrastructure.",
		Geolocation: map[string]any{"country": "US", "isp": "Google LLC"},
	},
	"1.1.1.1": {
		Reputation:  datatypes.ReputationBenign,
		Category:    "dns_server",
		ThreatScore: 0,
		Details:     "Cloudflare Public DNS.",
		Geolocation: map[string]any{"country": "US", "isp": "Cloudflare Inc"},
	},
}

// Agent performs reputation lookups.
type Agent struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// Option customizes an Agent.
type Option func(*Agent)

// WithBaseURL overrides the AbuseIPDB endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(a *Agent) { a.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) { a.client = c }
}

// NewAgent creates an intel agent. An empty apiKey disables the remote
// provider entirely.
func NewAgent(apiKey string, log *slog.Logger, opts ...Option) *Agent {
	if log == nil {
		log = slog.Default()
	}
	a := &Agent{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LookupIP resolves the reputation of one address. Provider failures are
// logged and absorbed; the caller always gets a usable answer.
func (a *Agent) LookupIP(ctx context.Context, ipAddress string) datatypes.IPReputation {
	if a.apiKey != "" {
		rep, err := a.queryAbuseIPDB(ctx, ipAddress)
		if err == nil {
			return rep
		}
		a.log.Warn("AbuseIPDB lookup failed, using fallback", "ip", ipAddress, "error", err)
	}
	return a.queryMockDB(ipAddress)
}

// abuseIPDBResponse is the subset of the /check payload we read.
type abuseIPDBResponse struct {
	Data struct {
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		UsageType            string `json:"usageType"`
		Domain               string `json:"domain"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
	} `json:"data"`
}

func (a *Agent) queryAbuseIPDB(ctx context.Context, ipAddress string) (datatypes.IPReputation, error) {
	endpoint := fmt.Sprintf("%s/check?%s", a.baseURL, url.Values{
		"ipAddress":    {ipAddress},
		"maxAgeInDays": {"90"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return datatypes.IPReputation{}, err
	}
	req.Header.Set("Key", a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return datatypes.IPReputation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return datatypes.IPReputation{}, fmt.Errorf("abuseipdb returned status %d", resp.StatusCode)
	}

	var payload abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return datatypes.IPReputation{}, fmt.Errorf("decode abuseipdb response: %w", err)
	}

	score := payload.Data.AbuseConfidenceScore
	reputation := datatypes.ReputationBenign
	switch {
	case score > 80:
		reputation = datatypes.ReputationMalicious
	case score > 20:
		reputation = datatypes.ReputationSuspicious
	}
	category := "clean"
	if score > 0 {
		category = "abuse_report"
	}

	now := time.Now().UTC()
	return datatypes.IPReputation{
		IPAddress:   ipAddress,
		Reputation:  reputation,
		ThreatScore: score,
		Category:    category,
		Details:     fmt.Sprintf("Usage Type: %s. Domain: %s", orDefault(payload.Data.UsageType, "Unknown"), orDefault(payload.Data.Domain, "N/A")),
		LastSeen:    &now,
		Geolocation: map[string]any{
			"country": payload.Data.CountryCode,
			"isp":     payload.Data.ISP,
		},
		Source: "abuseipdb",
	}, nil
}

func (a *Agent) queryMockDB(ipAddress string) datatypes.IPReputation {
	if rep, ok := mockDB[ipAddress]; ok {
		rep.IPAddress = ipAddress
		rep.Source = "mock_db"
		return rep
	}
	return datatypes.IPReputation{
		IPAddress:   ipAddress,
		Reputation:  datatypes.ReputationUnknown,
		ThreatScore: 0,
		Category:    "unknown",
		Details:     "No intelligence found in internal database.",
		Source:      "mock_db_miss",
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
