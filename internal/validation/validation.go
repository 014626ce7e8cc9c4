package validation

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
)

// IsValidEmail reports whether the address has the shape local@domain.tld.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidName accepts 2-50 letters and spaces.
func IsValidName(name string) bool {
	return nameRe.MatchString(strings.TrimSpace(name))
}

// NormalizeEmail lower-cases and trims the address; identities are keyed by
// this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeString trims whitespace and strips angle brackets.
func SanitizeString(input string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(input))
}
