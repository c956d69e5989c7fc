// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import "encoding/json"

// CVEPage is a single page of the NVD CVE API 2.0 response. Only fields the
// mirror reads are typed.
type CVEPage struct {
	ResultsPerPage  int       `json:"resultsPerPage"`
	StartIndex      int       `json:"startIndex"`
	TotalResults    int       `json:"totalResults"`
	Format          string    `json:"format,omitempty"`
	Version         string    `json:"version,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
	Vulnerabilities []CVEItem `json:"vulnerabilities"`
}

// CVEItem wraps a raw CVE as it appears in the vulnerabilities array.
type CVEItem struct {
	CVE RawCVE `json:"cve"`
}

// RawCVE is one upstream record. It is transient: the normalizer converts it
// into a Record straight after a page is decoded.
type RawCVE struct {
	ID           string        `json:"id"`
	Published    *string       `json:"published"`
	LastModified *string       `json:"lastModified"`
	Descriptions []Description `json:"descriptions"`
	// Metrics is keyed by scheme collection name (cvssMetricV31, ...). The
	// values are decoded lazily so an unfamiliar scheme cannot fail a page.
	Metrics map[string]json.RawMessage `json:"metrics"`
}

// Description is a language-tagged description entry.
type Description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// Metric is a single scoring entry within a scheme collection.
type Metric struct {
	Source   string   `json:"source"`
	Type     string   `json:"type"`
	CVSSData CVSSData `json:"cvssData"`
}

// CVSSData carries the score triple the mirror keeps.
type CVSSData struct {
	Version      *string  `json:"version"`
	VectorString *string  `json:"vectorString"`
	BaseScore    *float64 `json:"baseScore"`
	BaseSeverity string   `json:"baseSeverity,omitempty"`
}
