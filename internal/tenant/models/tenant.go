package models

import (
	"regexp"
	"strings"

	dErrors "meridian/pkg/domain-errors"
)

// MaxNameLength bounds tenant display names returned by the backend.
const MaxNameLength = 128

var slugPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Tenant is a customer company served from its own API namespace.
// ID carries the schema name; it doubles as the routing slug.
type Tenant struct {
	ID      string `json:"id"`
	Schema  string `json:"schema_name,omitempty"`
	Name    string `json:"name"`
	LogoURL string `json:"logo,omitempty"`
	Theme   *Theme `json:"theme,omitempty"`
}

// Theme is the optional branding block of a tenant.
type Theme struct {
	PrimaryColor string `json:"primary_color,omitempty"`
	Background   string `json:"background,omitempty"`
	LoginMessage string `json:"custom_login_message,omitempty"`
}

// Slug returns the identifier used to select the tenant host.
func (t *Tenant) Slug() string {
	if t == nil {
		return ""
	}
	if t.Schema != "" {
		return t.Schema
	}
	return t.ID
}

// ValidateBranding checks the shape of a public-settings payload.
func (t *Tenant) ValidateBranding() error {
	if t == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant branding is required")
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant name is required")
	}
	if len(name) > MaxNameLength {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant name must be 128 characters or less")
	}
	return nil
}

// NormalizeSlug lower-cases s and reports whether it is a valid schema slug.
func NormalizeSlug(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slugPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// ValidSlug reports whether s is already a normalized schema slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
