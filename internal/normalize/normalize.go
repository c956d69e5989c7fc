// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package normalize converts raw NVD CVEs into canonical records and upserts
// them into a dataset.
package normalize

import (
	"encoding/json"
	"sort"

	"github.com/bonial-oss/nvd-mirror/internal/types"
)

// SchemePriority is the fixed order in which metric collections are searched
// for a score. Collections not listed here are tried afterwards in lexical
// key order.
var SchemePriority = []string{
	"cvssMetricV40",
	"cvssMetricV31",
	"cvssMetricV30",
	"cvssMetricV2",
}

// Record converts a raw CVE into its canonical form. The returned id is
// normalized to uppercase.
func Record(raw types.RawCVE) (id string, rec types.Record) {
	rec = types.Record{
		PublishedAt: raw.Published,
		ModifiedAt:  raw.LastModified,
	}
	if len(raw.Descriptions) > 0 {
		desc := raw.Descriptions[0].Value
		rec.Description = &desc
	}
	if data, ok := firstScore(raw.Metrics); ok {
		rec.BaseScore = data.BaseScore
		rec.Vector = data.VectorString
		rec.ScoreSchemaVersion = data.Version
	}
	return types.NormalizeID(raw.ID), rec
}

// Merge upserts raw into ds. An existing record is replaced wholesale: fields
// missing from raw become null. CVEs without an identifier are skipped and
// reported as not merged.
func Merge(ds types.Dataset, raw types.RawCVE) bool {
	id, rec := Record(raw)
	if id == "" {
		return false
	}
	ds[id] = rec
	return true
}

// MergeAll merges every raw CVE and returns how many were merged.
func MergeAll(ds types.Dataset, raws []types.RawCVE) int {
	n := 0
	for i := range raws {
		if Merge(ds, raws[i]) {
			n++
		}
	}
	return n
}

// firstScore returns the first complete (score, vector, version) triple,
// searching collections in schemeOrder and entries in upstream order.
func firstScore(metrics map[string]json.RawMessage) (types.CVSSData, bool) {
	for _, scheme := range schemeOrder(metrics) {
		var entries []types.Metric
		if err := json.Unmarshal(metrics[scheme], &entries); err != nil {
			continue
		}
		for _, m := range entries {
			d := m.CVSSData
			if d.BaseScore != nil && d.VectorString != nil && d.Version != nil {
				return d, true
			}
		}
	}
	return types.CVSSData{}, false
}

func schemeOrder(metrics map[string]json.RawMessage) []string {
	order := make([]string, 0, len(metrics))
	known := make(map[string]bool, len(SchemePriority))
	for _, s := range SchemePriority {
		known[s] = true
		if _, ok := metrics[s]; ok {
			order = append(order, s)
		}
	}
	var rest []string
	for s := range metrics {
		if !known[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
