package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGraphBase = "https://graph.microsoft.com/v1.0"
	defaultAuthority = "https://login.microsoftonline.com"
	defaultTimeout   = 2 * time.Minute
	userAgent        = "credwatch"

	// pageSize is the largest $top Graph accepts for directory objects.
	pageSize = "999"
)

type Options struct {
	HTTPClient       *http.Client
	GraphBaseURL     string
	AuthorityBaseURL string
}

// Client reads app registrations and their owners from Microsoft Graph and
// submits sendMail requests, authenticated with the client-credentials flow.
type Client struct {
	tenantID     string
	clientID     string
	clientSecret string

	http          *http.Client
	graphBaseURL  string
	authorityBase string

	tokens tokenCache
}

// PasswordCredential is a client secret on an app registration.
type PasswordCredential struct {
	KeyID          string `json:"keyId"`
	DisplayName    string `json:"displayName"`
	EndDateTimeRaw string `json:"endDateTime"`
}

// KeyCredential is a certificate on an app registration.
type KeyCredential struct {
	KeyID          string `json:"keyId"`
	DisplayName    string `json:"displayName"`
	EndDateTimeRaw string `json:"endDateTime"`
}

type Application struct {
	ID                  string               `json:"id"`
	AppID               string               `json:"appId"`
	DisplayName         string               `json:"displayName"`
	PasswordCredentials []PasswordCredential `json:"passwordCredentials"`
	KeyCredentials      []KeyCredential      `json:"keyCredentials"`
}

// DirectoryOwner is one entry of an application's owners collection. The
// collection mixes users, groups and service principals; ODataType tells
// them apart and only the fields selected for owners are populated.
type DirectoryOwner struct {
	ID                string `json:"id"`
	ODataType         string `json:"@odata.type"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	UserType          string `json:"userType"`
}

var (
	applicationFields = []string{"id", "appId", "displayName", "passwordCredentials", "keyCredentials"}
	ownerFields       = []string{"id", "displayName", "mail", "userPrincipalName", "userType"}
)

func New(tenantID, clientID, clientSecret string) (*Client, error) {
	return NewWithOptions(tenantID, clientID, clientSecret, Options{})
}

func NewWithOptions(tenantID, clientID, clientSecret string, opts Options) (*Client, error) {
	c := &Client{
		tenantID:      normalizeGUID(tenantID),
		clientID:      normalizeGUID(clientID),
		clientSecret:  strings.TrimSpace(clientSecret),
		http:          opts.HTTPClient,
		graphBaseURL:  baseOrDefault(opts.GraphBaseURL, defaultGraphBase),
		authorityBase: baseOrDefault(opts.AuthorityBaseURL, defaultAuthority),
	}
	switch {
	case c.tenantID == "":
		return nil, errors.New("entra tenant id is required")
	case c.clientID == "":
		return nil, errors.New("entra client id is required")
	case c.clientSecret == "":
		return nil, errors.New("entra client secret is required")
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	return c, nil
}

// ListApplications returns every app registration visible to the client
// together with its certificate and secret credentials.
func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	endpoint, err := c.graphURL("/applications", selectQuery(applicationFields))
	if err != nil {
		return nil, err
	}
	return listAll[Application](ctx, c, "list applications", endpoint)
}

// ListApplicationOwners returns the owners of the application with the given
// object id.
func (c *Client) ListApplicationOwners(ctx context.Context, applicationID string) ([]DirectoryOwner, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, errors.New("application id is required")
	}
	endpoint, err := c.graphURL("/applications/"+url.PathEscape(applicationID)+"/owners", selectQuery(ownerFields))
	if err != nil {
		return nil, err
	}
	return listAll[DirectoryOwner](ctx, c, "list owners of "+applicationID, endpoint)
}

// listAll follows @odata.nextLink until the collection is exhausted and
// decodes every page straight into T.
func listAll[T any](ctx context.Context, c *Client, op, endpoint string) ([]T, error) {
	var out []T
	for endpoint != "" {
		body, err := c.send(ctx, request{op: op, method: http.MethodGet, url: endpoint, policy: readPolicy})
		if err != nil {
			return nil, err
		}
		var page struct {
			Value    []T    `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &decodeError{op: op, err: err}
		}
		out = append(out, page.Value...)
		endpoint = strings.TrimSpace(page.NextLink)
	}
	return out, nil
}

type decodeError struct {
	op  string
	err error
}

func (e *decodeError) Error() string { return "graph " + e.op + ": decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func selectQuery(fields []string) url.Values {
	return url.Values{
		"$select": {strings.Join(fields, ",")},
		"$top":    {pageSize},
	}
}

func (c *Client) graphURL(path string, query url.Values) (string, error) {
	if c.graphBaseURL == "" {
		return "", errors.New("entra graph base url is required")
	}
	u, err := url.Parse(c.graphBaseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String(), nil
}

func baseOrDefault(v, def string) string {
	if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
		return v
	}
	return def
}

// normalizeGUID lowercases an id and strips registry-style braces.
func normalizeGUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}"))
}
