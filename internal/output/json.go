// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package output renders records and mirror status as JSON or tables.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bonial-oss/nvd-mirror/internal/types"
)

func WriteJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// WriteRecordJSON writes entries as an object keyed by identifier, the same
// shape the chunk files use.
func WriteRecordJSON(w io.Writer, entries []Entry) error {
	ds := make(types.Dataset, len(entries))
	for _, e := range entries {
		ds[e.ID] = e.Record
	}
	return WriteJSON(w, ds)
}

type statusJSON struct {
	Dir        string     `json:"dir"`
	LastSynced *time.Time `json:"last_synced"`
	Fresh      bool       `json:"fresh"`
	Chunks     int        `json:"chunks"`
	Records    int        `json:"records"`
	Bytes      int64      `json:"bytes"`
}

// WriteStatusJSON writes the mirror status. last_synced is null when the
// mirror was never synced.
func WriteStatusJSON(w io.Writer, st Status) error {
	out := statusJSON{Dir: st.Dir, Fresh: st.Fresh, Chunks: st.Chunks, Records: st.Records, Bytes: st.Bytes}
	if !st.LastSynced.IsZero() {
		t := st.LastSynced.UTC()
		out.LastSynced = &t
	}
	return WriteJSON(w, out)
}
