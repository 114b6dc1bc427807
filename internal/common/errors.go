// Package common defines shared constants and sentinel errors used across
// typerank components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Join workflow terminal errors.
	ErrBadInput     = errors.New("bad input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("username taken")
	ErrRegionDenied = errors.New("region denied")

	// Upstream errors. ErrUpstreamIndeterminate marks transient upstream
	// failures (rate limits, 5xx, timeouts) and must never be treated as
	// a rejected credential.
	ErrUpstreamIndeterminate = errors.New("upstream indeterminate")
	ErrNoQualifyingResult    = errors.New("no qualifying result")

	// Auth errors (invalid or malformed session token).
	ErrInvalidToken = errors.New("invalid token")
)
