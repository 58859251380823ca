package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"meridian/internal/notify"
	dErrors "meridian/pkg/domain-errors"
)

// Endpoints with special-cased failure messages.
const (
	LoginPath          = "/api/v1/auth/login"
	PublicSettingsPath = "/api/v1/tenants/*/public-settings"
)

// ErrTenantUnresolved is returned before sending a tenant-scoped call when no
// tenant is known and dev mode is off.
var ErrTenantUnresolved = dErrors.New(dErrors.CodeTenantRequired, "tenant not resolved")

// Classification is the user-facing reading of a failed response.
type Classification struct {
	Status   int
	Severity notify.Type
	Title    string
	Message  string
}

// Notification converts the classification into a toast.
func (c Classification) Notification() notify.Message {
	return notify.Message{
		Type:  c.Severity,
		Title: c.Title,
		Text:  c.Message,
	}
}

// Classify maps a failed status and request path to its classification.
// It reports false for statuses the pipeline leaves to the caller.
func Classify(status int, requestPath string) (Classification, bool) {
	c := Classification{Status: status, Severity: notify.TypeError}
	switch {
	case status == http.StatusBadRequest:
		c.Title = "Invalid request"
		c.Message = "The request could not be processed. Check the data and try again."
		if matchPath(LoginPath, requestPath) {
			c.Message = "Invalid email or password."
		}
	case status == http.StatusUnauthorized:
		c.Title = "Session expired"
		c.Message = "Your session has expired. Please sign in again."
	case status == http.StatusForbidden:
		c.Title = "Access denied"
		c.Message = "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		c.Title = "Not found"
		c.Message = "The requested resource was not found."
		if matchPath(PublicSettingsPath, requestPath) {
			c.Title = "Company not found"
			c.Message = "No company is registered for this address."
		}
	case status == http.StatusTooManyRequests:
		c.Title = "Too many requests"
		c.Message = "Too many requests. Please wait a moment and try again."
	case status >= http.StatusInternalServerError:
		c.Title = "Server error"
		c.Message = "The server could not complete the request. Please try again later."
	default:
		return Classification{}, false
	}
	return c, true
}

// fixedMessage reports whether the classification for this status and path
// ignores the response body.
func fixedMessage(status int, requestPath string) bool {
	return (status == http.StatusBadRequest && matchPath(LoginPath, requestPath)) ||
		(status == http.StatusNotFound && matchPath(PublicSettingsPath, requestPath))
}

// errorBody is the backend's error shape.
type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Detail  string              `json:"detail"`
	Details map[string][]string `json:"details"`
}

// BodyMessage extracts the most specific message from a backend error body.
// Field details are flattened as "field: m1, m2; other: m3", fields sorted.
func BodyMessage(body []byte) string {
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return ""
	}
	if len(eb.Details) > 0 {
		fields := make([]string, 0, len(eb.Details))
		for f := range eb.Details {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			if len(eb.Details[f]) == 0 {
				continue
			}
			parts = append(parts, f+": "+strings.Join(eb.Details[f], ", "))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	for _, s := range []string{eb.Detail, eb.Message, eb.Error} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// StatusError is returned for non-2xx statuses outside the classification table.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if msg := BodyMessage(e.Body); msg != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// StatusCode extracts the status of a *StatusError, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// matchPath compares request paths ignoring trailing slashes. Patterns may use
// path.Match wildcards, and a trailing "/**" matches the whole subtree.
func matchPath(pattern, p string) bool {
	pattern = trimSlash(pattern)
	p = trimSlash(p)
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	if pattern == p {
		return true
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}

func trimSlash(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p = strings.TrimRight(p, "/"); p == "" {
		return "/"
	}
	return p
}
