package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures. Verification paths treat
// it as uncertainty and reject.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Registry stores revocation tombstones in Redis. A tombstone lives exactly as
// long as the longest-lived token it covers, so the registry cleans itself and
// membership alone is sufficient to reject a token.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Registry] namespaced under prefix.
func New(redisClient redis.UniversalClient, prefix string) *Registry {
	return &Registry{
		redis:  redisClient,
		prefix: prefix,
	}
}

// RevokeToken writes a tombstone for a single jti. ttl should be the remaining
// life of the token; a non-positive ttl means the token is already dead and
// the write is skipped.
func (r *Registry) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	return r.revoke(ctx, r.tokenKey(jti), ttl)
}

// RevokeLineage writes a tombstone covering every token that carries the
// lineage id, access and refresh alike.
func (r *Registry) RevokeLineage(ctx context.Context, lineage string, ttl time.Duration) error {
	return r.revoke(ctx, r.lineageKey(lineage), ttl)
}

// IsRevoked reports whether the jti or its lineage has a live tombstone.
// One Redis round trip; both keys are checked in a single EXISTS.
func (r *Registry) IsRevoked(ctx context.Context, jti, lineage string) (bool, error) {
	keys := make([]string, 0, 2)
	if jti != "" {
		keys = append(keys, r.tokenKey(jti))
	}
	if lineage != "" {
		keys = append(keys, r.lineageKey(lineage))
	}
	if len(keys) == 0 {
		return false, nil
	}

	n, err := r.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func (r *Registry) revoke(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := r.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Registry) tokenKey(jti string) string {
	return r.prefix + ":rv:t:" + jti
}

func (r *Registry) lineageKey(lineage string) string {
	return r.prefix + ":rv:l:" + lineage
}
