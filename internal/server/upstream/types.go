// Package upstream talks to the third-party typing-test API: credential
// probing and best-qualifying-result retrieval, with the retry, fallback
// and clamping policies around both.
package upstream

import (
	"context"
	"encoding/json"
)

// ProbeOutcome classifies one credential probe.
type ProbeOutcome int

const (
	// ProbeValid means the upstream accepted the credential.
	ProbeValid ProbeOutcome = iota

	// ProbeInvalid means the upstream rejected the credential as
	// unauthorized. Only this outcome may trigger eviction.
	ProbeInvalid

	// ProbeIndeterminate covers rate limits, server errors, and timeouts.
	// It must never be treated as invalid, or an upstream outage would
	// mass-evict legitimate users.
	ProbeIndeterminate
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeValid:
		return "valid"
	case ProbeInvalid:
		return "invalid"
	case ProbeIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Result is the best qualifying result fetched for a user, already clamped
// and rounded. Raw preserves the upstream record it was derived from.
type Result struct {
	Score    int
	Accuracy float64
	Raw      json.RawMessage
}

// Validator probes the upstream API to classify a credential. A probe must
// apply a bounded timeout and must not retry internally; the caller owns
// retry policy.
type Validator interface {
	Probe(ctx context.Context, credential string) (ProbeOutcome, error)
}

// ResultSource produces the best qualifying result for a username. Two
// implementations exist: the real API client and the offline demo source;
// the mode is chosen once at process startup.
type ResultSource interface {
	BestQualifyingResult(ctx context.Context, username, credential string) (*Result, error)
}
