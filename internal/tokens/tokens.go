package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
	"github.com/prepwise/prepwise/backend/auth-service/internal/models"
	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
)

// ErrMissingSecret is a configuration fault: the signing secret is not set.
// Startup validation should make this unreachable per-request.
var ErrMissingSecret = errors.New("JWT signing secret is not configured")

// ErrInvalidToken covers every verification failure on a presented access
// token. Callers must not learn whether the signature, shape or expiry
// check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPair is one access credential and one refresh token, always issued
// together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccessClaims is the payload of a verified access token.
type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a signed HS256 JWT for the user.
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": u.ID,
		"email":  u.Email,
		"name":   u.Name,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseAccessToken verifies signature and expiry and returns the claims.
// Any failure collapses into ErrInvalidToken.
func ParseAccessToken(cfg *config.Config, raw string) (*AccessClaims, error) {
	if cfg.JWT.Secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &AccessClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issuer mints token pairs: a signed short-lived access token plus an opaque
// refresh token persisted as a session row. A pair is never returned
// partially; if the session write fails the access token is discarded.
type Issuer struct {
	cfg      *config.Config
	sessions *sessions.Service
}

func NewIssuer(cfg *config.Config, s *sessions.Service) *Issuer {
	return &Issuer{cfg: cfg, sessions: s}
}

// Issue creates a fresh pair for the user and persists the refresh session.
func (i *Issuer) Issue(ctx context.Context, u *models.User) (*TokenPair, error) {
	access, err := GenerateAccessToken(i.cfg, u, i.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sessions.CreateSession(ctx, u.ID, i.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate exchanges a live refresh token for a new pair. The old token is
// consumed atomically; when a concurrent exchange already consumed it the
// rotation fails with sessions.ErrNotFound.
func (i *Issuer) Rotate(ctx context.Context, oldToken string, u *models.User) (*TokenPair, error) {
	access, err := GenerateAccessToken(i.cfg, u, i.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sessions.RotateRefresh(ctx, oldToken, u.ID, i.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
