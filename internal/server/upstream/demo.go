package upstream

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/typerank/internal/cryptox"
)

// DemoSource is the offline alternative to the API client: it derives a
// stable pseudo-result from the username digest and accepts every
// credential. Selected at startup with upstream_mode "demo" so the service
// can run end to end without upstream access.
type DemoSource struct{}

func NewDemoSource() *DemoSource {
	return &DemoSource{}
}

func (s *DemoSource) Probe(ctx context.Context, credential string) (ProbeOutcome, error) {
	return ProbeValid, nil
}

func (s *DemoSource) BestQualifyingResult(ctx context.Context, username, credential string) (*Result, error) {
	digest := cryptox.CredentialDigest(username)

	// two digest bytes give a stable score in [40, 167] and accuracy in
	// [90.00, 99.99]
	score := 40 + int(digest[0]%8)*16 + int(digest[1]%16)
	accuracy := 90 + float64(int(digest[2])*100%1000)/100

	raw, _ := json.Marshal(map[string]any{
		"mode": "demo",
		"wpm":  score,
		"acc":  accuracy,
	})

	return &Result{Score: score, Accuracy: accuracy, Raw: raw}, nil
}

var _ Validator = (*DemoSource)(nil)
var _ ResultSource = (*DemoSource)(nil)

// compile-time interface checks for the real client as well
var _ Validator = (*Client)(nil)
var _ ResultSource = (*Client)(nil)
