package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under "<prefix><token>" with TTL derived from
// the expiry, so expired sessions vanish without a sweeper.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + token
}

func (r *RedisRepository) set(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// minimal TTL so Redis never stores an already-expired session
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(s.Token), b, ttl).Err()
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return r.set(ctx, s)
}

func (r *RedisRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(token)).Err()
		return nil, ErrNotFound
	}
	return &s, nil
}

// Replace consumes the old token with GETDEL before writing the new one.
// The old token is dead the moment the new session is stored; a concurrent
// rotation that lost the GETDEL race observes ErrNotFound.
func (r *RedisRepository) Replace(ctx context.Context, oldToken string, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := r.client.GetDel(ctx, r.key(oldToken)).Err(); err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return err
	}
	return r.set(ctx, s)
}

func (r *RedisRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}

// DeleteByUser scans the session keyspace and removes every session owned
// by the user. Used on account deletion; not on any hot path.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(b, &s); err != nil {
			continue
		}
		if s.UserID == userID {
			_ = r.client.Del(ctx, key).Err()
		}
	}
	return iter.Err()
}
