// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package window splits a time span into sub-windows no wider than the
// upstream's maximum queryable range.
package window

import (
	"fmt"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Width returns End - Start.
func (w Window) Width() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Windower yields contiguous windows covering [start, end). It is consumed
// once; there is no way to rewind it.
type Windower struct {
	next    time.Time
	end     time.Time
	maxSpan time.Duration
	cur     Window
}

// New returns a Windower over [start, end). An empty or inverted range yields
// no windows. maxSpan must be positive.
func New(start, end time.Time, maxSpan time.Duration) *Windower {
	if maxSpan <= 0 {
		panic(fmt.Sprintf("window: non-positive max span %v", maxSpan))
	}
	return &Windower{next: start, end: end, maxSpan: maxSpan}
}

// Next advances to the next window, reporting false once the range is
// exhausted.
func (w *Windower) Next() bool {
	if !w.next.Before(w.end) {
		return false
	}
	end := w.next.Add(w.maxSpan)
	if end.After(w.end) {
		end = w.end
	}
	w.cur = Window{Start: w.next, End: end}
	w.next = end
	return true
}

// Window returns the window produced by the last call to Next.
func (w *Windower) Window() Window {
	return w.cur
}

// Split is a convenience that drains a Windower into a slice.
func Split(start, end time.Time, maxSpan time.Duration) []Window {
	var out []Window
	for w := New(start, end, maxSpan); w.Next(); {
		out = append(out, w.Window())
	}
	return out
}
