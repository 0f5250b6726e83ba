package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxErrorText = 240

// APIError is a non-2xx answer from Graph or the Entra token endpoint.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s: HTTP %d", e.Op, e.StatusCode)
	switch {
	case e.Code != "" && e.Message != "":
		fmt.Fprintf(&b, " %s: %s", e.Code, e.Message)
	case e.Code != "":
		b.WriteString(" " + e.Code)
	case e.Message != "":
		b.WriteString(" " + e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request-id %s]", e.RequestID)
	}
	return b.String()
}

// Throttled reports whether the service asked the caller to back off.
func (e *APIError) Throttled() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func newAPIError(op string, resp response) *APIError {
	e := &APIError{
		Op:         op,
		StatusCode: resp.status,
		RequestID:  strings.TrimSpace(resp.header.Get("request-id")),
	}
	if e.RequestID == "" {
		e.RequestID = strings.TrimSpace(resp.header.Get("client-request-id"))
	}
	e.Code, e.Message = errorText(resp.body)
	return e
}

// errorText pulls code and message out of either error shape: Graph's
// {"error":{"code","message"}} and the OAuth {"error","error_description"}.
// Anything else is returned as collapsed, truncated text.
func errorText(body []byte) (code, message string) {
	var env struct {
		Error       json.RawMessage `json:"error"`
		Description string          `json:"error_description"`
	}
	if json.Unmarshal(body, &env) == nil && len(env.Error) > 0 {
		raw := bytes.TrimSpace(env.Error)
		if len(raw) > 0 && raw[0] == '{' {
			var inner struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &inner) == nil {
				return strings.TrimSpace(inner.Code), clip(inner.Message)
			}
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return strings.TrimSpace(s), clip(firstLine(env.Description))
		}
	}
	return "", clip(string(body))
}

// firstLine drops the trace and correlation lines Entra appends to
// error_description.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxErrorText {
		return s
	}
	cut := maxErrorText
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
