package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"animeavatar/pkg/domain"
)

// SessionCache is a read-through Redis cache over session-token lookup.
// Session rows are immutable after creation, so cached entries never go
// stale; the TTL only bounds memory. All other Store operations pass
// through to the wrapped store.
type SessionCache struct {
	Store
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionCache wraps a Store with a Redis token cache.
func NewSessionCache(inner Store, addr, password string, ttl time.Duration) *SessionCache {
	return &SessionCache{
		Store: inner,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "avatar:session:",
		ttl:    ttl,
	}
}

// GetSessionByToken resolves from cache first, falling back to the
// wrapped store. Cache failures degrade to the store lookup.
func (c *SessionCache) GetSessionByToken(token string) (domain.Session, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if id, err := c.client.Get(ctx, c.prefix+token).Result(); err == nil && id != "" {
		return domain.Session{ID: id, SessionToken: token}, true, nil
	}
	session, ok, err := c.Store.GetSessionByToken(token)
	if err != nil || !ok {
		return session, ok, err
	}
	_ = c.client.Set(ctx, c.prefix+token, session.ID, c.ttl).Err()
	return session, true, nil
}

// CreateSession writes through to the store and primes the cache.
func (c *SessionCache) CreateSession(s domain.Session) error {
	if err := c.Store.CreateSession(s); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = c.client.Set(ctx, c.prefix+s.SessionToken, s.ID, c.ttl).Err()
	return nil
}
