// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import "strings"

// Record is the canonical, persisted representation of a single CVE. All
// fields except the identifier (which is the map key in a Dataset) are
// nullable and serialize as JSON null when unknown.
type Record struct {
	Description        *string  `json:"description"`
	PublishedAt        *string  `json:"publish_date"`
	ModifiedAt         *string  `json:"last_modified_date"`
	BaseScore          *float64 `json:"base_score"`
	Vector             *string  `json:"vector"`
	ScoreSchemaVersion *string  `json:"cvss_version"`
}

// Dataset maps an uppercase CVE identifier to its record.
type Dataset map[string]Record

// NormalizeID returns the canonical form of a CVE identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Get returns the record for id, matching case-insensitively.
func (d Dataset) Get(id string) (Record, bool) {
	rec, ok := d[NormalizeID(id)]
	return rec, ok
}

// Severity returns the qualitative CVSS rating for the record's base score,
// or "UNKNOWN" when no score is present.
func (r Record) Severity() string {
	if r.BaseScore == nil {
		return "UNKNOWN"
	}
	switch s := *r.BaseScore; {
	case s == 0:
		return "NONE"
	case s < 4.0:
		return "LOW"
	case s < 7.0:
		return "MEDIUM"
	case s < 9.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}
