package directory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 64 << 10

// retryPolicy says how often a throttled request is attempted again.
type retryPolicy struct {
	retries    int
	maxBackoff time.Duration
}

var (
	// readPolicy covers idempotent reads, which back off and retry.
	readPolicy = retryPolicy{retries: 5, maxBackoff: 30 * time.Second}
	// sendPolicy submits once. A throttled sendMail is reported to the
	// dispatcher as a failed delivery.
	sendPolicy = retryPolicy{}
)

type request struct {
	op     string
	method string
	url    string
	body   []byte
	policy retryPolicy
}

// send performs r with a bearer token and returns the response body of the
// first 2xx answer. Any other answer becomes an *APIError.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	token, err := c.tokens.get(ctx, c.fetchToken)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.roundTrip(ctx, r, token)
		if err != nil {
			return nil, err
		}
		if resp.ok() {
			return resp.body, nil
		}

		apiErr := newAPIError(r.op, resp)
		if !apiErr.Throttled() || attempt >= r.policy.retries {
			return nil, apiErr
		}
		wait, ok := parseRetryAfter(resp.header.Get("Retry-After"), time.Now())
		if !ok {
			wait = backoff(attempt, r.policy.maxBackoff)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

func (c *Client) roundTrip(ctx context.Context, r request, token string) (response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.exchange(req)
}

// exchange runs req and reads its body, truncating error bodies.
func (c *Client) exchange(req *http.Request) (response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header}
	var src io.Reader = resp.Body
	if !out.ok() {
		src = io.LimitReader(resp.Body, maxErrorBody)
	}
	if out.body, err = io.ReadAll(src); err != nil {
		return response{}, err
	}
	return out, nil
}

// parseRetryAfter accepts both forms of Retry-After: delay seconds and an
// HTTP date. Dates in the past mean retry immediately.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return max(at.Sub(now), 0), true
}

// backoff doubles from one second per attempt, capped at limit.
func backoff(attempt int, limit time.Duration) time.Duration {
	wait := time.Second << min(attempt, 16)
	if limit > 0 && wait > limit {
		return limit
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
