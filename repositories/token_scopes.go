package repositories

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

// TokenScopes hands out the credential store of one gateway session.
type TokenScopes interface {
	Scope(sessionID string) TokenRepository
}

// RedisTokenScopes namespaces each session under prefix:sessionID.
type RedisTokenScopes struct {
	client *redis.Client
	prefix string
}

func NewRedisTokenScopes(client *redis.Client, prefix string) *RedisTokenScopes {
	return &RedisTokenScopes{client: client, prefix: prefix}
}

func (s *RedisTokenScopes) Scope(sessionID string) TokenRepository {
	return NewRedisTokenRepository(s.client, s.prefix+":"+sessionID)
}

// MemoryTokenScopes keeps per-session stores in process; idle sessions
// expire after ttl.
type MemoryTokenScopes struct {
	stores *cache.Cache
	ttl    time.Duration
}

func NewMemoryTokenScopes(ttl time.Duration) *MemoryTokenScopes {
	return &MemoryTokenScopes{
		stores: cache.New(ttl, ttl),
		ttl:    ttl,
	}
}

func (s *MemoryTokenScopes) Scope(sessionID string) TokenRepository {
	if repo, ok := s.stores.Get(sessionID); ok {
		s.stores.Set(sessionID, repo, s.ttl)
		return repo.(*MemoryTokenRepository)
	}
	repo := NewMemoryTokenRepository()
	// Add loses to a concurrent Scope for the same id; use the winner.
	if err := s.stores.Add(sessionID, repo, s.ttl); err != nil {
		if existing, ok := s.stores.Get(sessionID); ok {
			return existing.(*MemoryTokenRepository)
		}
	}
	return repo
}
