// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Reputation classifications returned by the intel agent.
const (
	ReputationMalicious  = "malicious"
	ReputationSuspicious = "suspicious"
	ReputationBenign     = "benign"
	ReputationUnknown    = "unknown"
)

// IPReputation is the result of a threat-intelligence lookup for one
// network address.
type IPReputation struct {
	IPAddress string `json:"ip_address"`

	// Reputation is malicious, suspicious, benign, or unknown.
	Reputation string `json:"reputation"`

	// ThreatScore runs 0 (benign) to 100 (highly malicious).
	ThreatScore int `json:"threat_score"`

	// Category classifies the threat (e.g. brute_force_attacker, tor_exit_node).
	Category string `json:"category"`

	// Details is a human-readable explanation of the classification.
	Details string `json:"details"`

	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`

	// Geolocation holds country/ISP data when the source provides it.
	Geolocation map[string]any `json:"geolocation,omitempty"`

	// Source names the intelligence origin (abuseipdb, mock_db, mock_db_miss).
	Source string `json:"source"`
}
