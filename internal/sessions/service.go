package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service wraps repository operations with the session lifecycle rules:
// opaque token generation, expiry enforcement and rotation-on-use.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// newToken mints a cryptographically random opaque refresh token. The value
// is never signed or decoded; it only serves as a store lookup key.
func newToken() string {
	return uuid.NewString()
}

// CreateSession stores a new refresh session and returns its token.
func (s *Service) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := newToken()
	sess := &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateRefresh resolves a refresh token to its session. An expired
// session is deleted on detection and reported as ErrExpired so the caller
// can force a full re-authentication.
func (s *Service) ValidateRefresh(ctx context.Context, token string) (*Session, error) {
	sess, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		if derr := s.repo.DeleteByToken(ctx, token); derr != nil {
			return nil, derr
		}
		return nil, ErrExpired
	}
	return sess, nil
}

// RotateRefresh atomically replaces the session keyed by oldToken with a
// fresh token and expiry. Refresh tokens are single-use: the moment this
// returns, oldToken is permanently invalid. A concurrent rotation of the
// same token loses with ErrNotFound.
func (s *Service) RotateRefresh(ctx context.Context, oldToken, userID string, ttl time.Duration) (string, error) {
	token := newToken()
	sess := &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := s.repo.Replace(ctx, oldToken, sess); err != nil {
		return "", err
	}
	return token, nil
}

// DeleteRefresh removes the session. Deleting an unknown token is not an
// error, so sign-out is idempotent.
func (s *Service) DeleteRefresh(ctx context.Context, token string) error {
	return s.repo.DeleteByToken(ctx, token)
}

// DeleteAllForUser revokes every session the user owns.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}
