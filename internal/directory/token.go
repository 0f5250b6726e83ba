package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	graphScope = "https://graph.microsoft.com/.default"
	// tokenLeeway renews a token this long before Entra would reject it.
	tokenLeeway = 30 * time.Second
	// fallbackTokenLifetime is assumed when expires_in is absent.
	fallbackTokenLifetime = time.Hour
)

// tokenCache holds one bearer token and refreshes it on demand.
type tokenCache struct {
	mu      sync.Mutex
	value   string
	expires time.Time
}

type tokenFetcher func(ctx context.Context) (string, time.Duration, error)

// get returns the cached token, fetching a new one when it is missing or
// about to expire. Concurrent callers share a single fetch.
func (tc *tokenCache) get(ctx context.Context, fetch tokenFetcher) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	if tc.value != "" && now.Add(tokenLeeway).Before(tc.expires) {
		return tc.value, nil
	}
	token, lifetime, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	tc.value = token
	tc.expires = now.Add(lifetime)
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) tokenURL() (string, error) {
	u, err := url.Parse(c.authorityBase)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(c.tenantID) + "/oauth2/v2.0/token"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// fetchToken runs the client-credentials grant against the tenant's v2.0
// token endpoint.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	endpoint, err := c.tokenURL()
	if err != nil {
		return "", 0, err
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {graphScope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.exchange(req)
	if err != nil {
		return "", 0, err
	}
	if !resp.ok() {
		return "", 0, newAPIError("acquire token", resp)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return "", 0, &decodeError{op: "acquire token", err: err}
	}
	token := strings.TrimSpace(tr.AccessToken)
	if token == "" {
		return "", 0, errors.New("entra token response missing access_token")
	}
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = fallbackTokenLifetime
	}
	return token, lifetime, nil
}
