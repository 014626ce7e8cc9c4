package sessions

import (
	"errors"
	"time"
)

// Session is a persistent refresh-token record. The token value is the only
// handle a client holds; it carries no structure and is meaningful purely as
// a lookup key.
type Session struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Token     string    `bson:"token" json:"token"`
	UserID    string    `bson:"userId" json:"userId"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

var (
	// ErrNotFound means the presented refresh token maps to no live session.
	// A token that was already rotated or signed out reports the same error.
	ErrNotFound = errors.New("invalid refresh token")
	// ErrExpired means the session existed but its TTL has passed. The row is
	// removed on detection; the client must authenticate from scratch.
	ErrExpired = errors.New("refresh token expired")
)
