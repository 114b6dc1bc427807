package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
)

// retryDelays is the backoff schedule for the personal-best call: the
// first attempt runs immediately, retries wait 400ms then 900ms.
var retryDelays = []time.Duration{400 * time.Millisecond, 900 * time.Millisecond}

// Client is the real upstream API client. It implements both Validator and
// ResultSource over the three read endpoints the service uses.
type Client struct {
	baseURL        string
	hc             *http.Client
	timeout        time.Duration
	targetMode     string
	targetDuration int
	logger         logging.Logger
}

func NewClient(baseURL string, timeout time.Duration, targetMode string, targetDuration int, logger logging.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		hc:             &http.Client{},
		timeout:        timeout,
		targetMode:     targetMode,
		targetDuration: targetDuration,
		logger:         logger.With("module", "upstream_client"),
	}
}

// envelope is the common upstream response wrapper.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiResult is one completed test as the upstream reports it. Mode2 carries
// the duration for timed tests, as a string.
type apiResult struct {
	Mode  string  `json:"mode"`
	Mode2 string  `json:"mode2"`
	WPM   float64 `json:"wpm"`
	Acc   float64 `json:"acc"`
}

// personalBest is one personal-best record within a mode bucket.
type personalBest struct {
	WPM float64 `json:"wpm"`
	Acc float64 `json:"acc"`
}

// doGet performs one bounded-timeout GET with the credential in the auth
// header. Network failures are classified as indeterminate.
func (c *Client) doGet(ctx context.Context, path, credential string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "ApeKey "+credential)

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", common.ErrUpstreamIndeterminate, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", common.ErrUpstreamIndeterminate, err)
	}

	return resp.StatusCode, body, nil
}

// classifyStatus maps an upstream HTTP status onto the error taxonomy:
// nil for success, ErrUnauthorized for credential rejection, and
// ErrUpstreamIndeterminate for anything transient or unexpected.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return common.ErrUnauthorized
	default:
		return fmt.Errorf("%w: upstream status %d", common.ErrUpstreamIndeterminate, status)
	}
}

func (c *Client) getData(ctx context.Context, path, credential string) (json.RawMessage, error) {
	status, body, err := c.doGet(ctx, path, credential)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", common.ErrUpstreamIndeterminate, err)
	}
	return env.Data, nil
}

func (c *Client) buildResult(wpm, acc float64, raw json.RawMessage) *Result {
	return &Result{
		Score:    profiles.ClampScore(wpm),
		Accuracy: profiles.ClampAccuracy(acc),
		Raw:      raw,
	}
}

func (c *Client) matchesTarget(r apiResult) bool {
	return r.Mode == c.targetMode && r.Mode2 == strconv.Itoa(c.targetDuration)
}

// personalBestResult queries the personal-bests endpoint filtered to the
// target mode and picks the maximum-score entry among the qualifying
// duration bucket. Variants tie on configuration, so the maximum is taken
// rather than the first entry.
func (c *Client) personalBestResult(ctx context.Context, credential string) (*Result, error) {
	data, err := c.getData(ctx, "/users/personalBests?mode="+c.targetMode, credential)
	if err != nil {
		return nil, err
	}

	buckets := map[string][]json.RawMessage{}
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("%w: decode personal bests: %v", common.ErrUpstreamIndeterminate, err)
	}

	entries := buckets[strconv.Itoa(c.targetDuration)]
	if len(entries) == 0 {
		return nil, common.ErrNoQualifyingResult
	}

	var best *Result
	for _, raw := range entries {
		var pb personalBest
		if err := json.Unmarshal(raw, &pb); err != nil {
			continue
		}
		candidate := c.buildResult(pb.WPM, pb.Acc, raw)
		if best == nil || candidate.Score > best.Score {
			best = candidate
		}
	}
	if best == nil {
		return nil, common.ErrNoQualifyingResult
	}
	return best, nil
}

// personalBestWithRetry wraps personalBestResult with the bounded backoff
// schedule. Only transient failures are retried; an authorization rejection
// fails fast.
func (c *Client) personalBestWithRetry(ctx context.Context, credential string) (*Result, error) {
	var res *Result

	b := scheduleBackoff(retryDelays...)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := c.personalBestResult(ctx, credential)
		if err != nil {
			if errors.Is(err, common.ErrUpstreamIndeterminate) {
				return retry.RetryableError(err)
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) lastResult(ctx context.Context, credential string) (*Result, error) {
	data, err := c.getData(ctx, "/results/last", credential)
	if err != nil {
		return nil, err
	}

	var r apiResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: decode last result: %v", common.ErrUpstreamIndeterminate, err)
	}
	if !c.matchesTarget(r) {
		return nil, common.ErrNoQualifyingResult
	}
	return c.buildResult(r.WPM, r.Acc, data), nil
}

func (c *Client) recentResults(ctx context.Context, credential string) (*Result, error) {
	data, err := c.getData(ctx, "/results?limit=50", credential)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: decode recent results: %v", common.ErrUpstreamIndeterminate, err)
	}

	// most recent first; take the first qualifying one
	for _, raw := range raws {
		var r apiResult
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if c.matchesTarget(r) {
			return c.buildResult(r.WPM, r.Acc, raw), nil
		}
	}
	return nil, common.ErrNoQualifyingResult
}

// BestQualifyingResult walks the ordered fallback chain: personal bests
// (with retry), then the most recent single result, then a bounded window
// of recent results. An authorization rejection short-circuits the whole
// chain; anything else falls through to the next step.
func (c *Client) BestQualifyingResult(ctx context.Context, username, credential string) (*Result, error) {
	res, err := c.personalBestWithRetry(ctx, credential)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, common.ErrUnauthorized) {
		return nil, err
	}
	c.logger.Debug(ctx, "personal bests unavailable, falling back", "username", username, "error", err.Error())

	res, err = c.lastResult(ctx, credential)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, common.ErrUnauthorized) {
		return nil, err
	}

	res, err = c.recentResults(ctx, credential)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, common.ErrUnauthorized) {
		return nil, err
	}

	return nil, common.ErrNoQualifyingResult
}

// scheduleBackoff returns a Backoff that walks the given delays once and
// then stops.
func scheduleBackoff(delays ...time.Duration) retry.Backoff {
	i := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if i >= len(delays) {
			return 0, true
		}
		d := delays[i]
		i++
		return d, false
	})
}
