// Package privacy masks personal data before it reaches logs.
package privacy

import "strings"

// MaskEmail keeps the first character of the local part and the domain
// ("ana@acme.io" -> "a***@acme.io"). Values without a domain are fully masked.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskToken keeps the last four characters of a secret so log lines can be
// correlated without exposing it.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return "***" + token[len(token)-4:]
}
