package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the deployment default; overridable via config.
const DefaultCost = 12

// Hasher wraps bcrypt with a fixed cost factor.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a salted bcrypt digest of the secret. The raw secret is
// never stored or logged.
func (h *Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches digest. A wrong secret is not an
// error, it is simply false.
func (h *Hasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

const specials = "@$!%*?&"

// ValidatePolicy checks the password acceptance policy and returns every
// violated rule, not just the first.
func ValidatePolicy(secret string) []string {
	var errs []string

	if len(secret) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if !strings.ContainsFunc(secret, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !strings.ContainsFunc(secret, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsFunc(secret, func(r rune) bool { return r >= '0' && r <= '9' }) {
		errs = append(errs, "Password must contain at least one number")
	}
	if !strings.ContainsAny(secret, specials) {
		errs = append(errs, "Password must contain at least one special character (@$!%*?&)")
	}
	return errs
}
