// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package nvd

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable matches any transient upstream failure: a
	// transport error or a non-200 response. These are retried.
	ErrUpstreamUnavailable = errors.New("NVD upstream unavailable")

	// ErrMalformedResponse is returned when a response body is not valid JSON
	// even after trailing commas were stripped. It is never retried.
	ErrMalformedResponse = errors.New("malformed NVD response")

	// ErrResponseTooLarge is returned when a body exceeds the size limit.
	// It is never retried.
	ErrResponseTooLarge = errors.New("NVD response too large")
)

// UpstreamError describes a non-200 response.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Is makes UpstreamError match ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}
