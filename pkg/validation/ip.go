// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for
// security-critical operations.
//
// Planner-produced parameters end up in outbound HTTP queries and log
// lines; validating them here prevents a compromised or confused model
// from smuggling arbitrary strings through the task boundary.
package validation

import (
	"fmt"
	"net/netip"
)

// maxIPLength bounds raw input before parsing. The longest valid textual
// IP (IPv6 with an embedded IPv4 suffix) is 45 characters.
const maxIPLength = 45

// ValidateIPAddress checks that raw parses as a bare IPv4 or IPv6
// address. Zones, ports, CIDR suffixes, and hostnames are all rejected.
//
// Example:
//
//	if err := validation.ValidateIPAddress(ip); err != nil {
//	    return nil, fmt.Errorf("invalid ip_address: %w", err)
//	}
//	// Safe to interpolate into a provider query
func ValidateIPAddress(raw string) error {
	if raw == "" {
		return fmt.Errorf("ip address cannot be empty")
	}
	if len(raw) > maxIPLength {
		return fmt.Errorf("ip address exceeds %d characters", maxIPLength)
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return fmt.Errorf("not a valid IP address: %q", raw)
	}
	if addr.Zone() != "" {
		return fmt.Errorf("zoned addresses are not allowed: %q", raw)
	}
	return nil
}
