package upstream

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/typerank/internal/common"
)

// Probe classifies the credential with a single bounded-timeout request.
// The endpoint returns success even for a credential with no test history,
// so validity never depends on recent activity. No internal retry: the
// caller decides whether and when to probe again.
func (c *Client) Probe(ctx context.Context, credential string) (ProbeOutcome, error) {
	status, _, err := c.doGet(ctx, "/results?limit=1", credential)
	if err != nil {
		// network failure or timeout
		return ProbeIndeterminate, nil
	}

	checkErr := classifyStatus(status)
	switch {
	case checkErr == nil:
		return ProbeValid, nil
	case errors.Is(checkErr, common.ErrUnauthorized):
		return ProbeInvalid, nil
	default:
		return ProbeIndeterminate, nil
	}
}
