package refreshstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis transport failures. Rotation treats it as
	// uncertainty and fails closed.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrRecordNotFound is returned when no record exists for the jti.
	ErrRecordNotFound = errors.New("refresh record not found")
	// ErrRecordExpired is returned when the record exists but its expiry passed.
	ErrRecordExpired = errors.New("refresh record expired")
	// ErrRecordConsumed is returned when the record was already consumed. This
	// is the replay signal: every rotation consumes exactly one live record.
	ErrRecordConsumed = errors.New("refresh record already consumed")
	// ErrRecordCorrupt is returned when the stored blob cannot be interpreted.
	ErrRecordCorrupt = errors.New("refresh record corrupt")
)

const (
	consumeStatusNotFound int64 = 0
	consumeStatusExpired  int64 = 1
	consumeStatusConsumed int64 = 2
	consumeStatusOK       int64 = 3
	consumeStatusCorrupt  int64 = 4
)

// The consume script is the single atomic step of rotation. It flips the
// consumed flag in place, preserving the remaining TTL, and only ever
// succeeds for one concurrent caller. Offsets follow the v1 record layout
// in encoder.go (Lua strings are 1-indexed).
const consumeScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local key = KEYS[1]
local now = tonumber(ARGV[1])

local data = redis.call("GET", key)
if not data then
  return {0}
end

if #data < 26 then
  return {4}
end

local version = string.byte(data, 1)
if version ~= 1 then
  return {4}
end

local flags = string.byte(data, 2)
local expires_at = read_be64(data, 3)
if not expires_at then
  return {4}
end

if expires_at <= now then
  redis.call("DEL", key)
  return {1}
end

if flags % 2 == 1 then
  return {2}
end

local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  redis.call("DEL", key)
  return {1}
end

local updated = string.sub(data, 1, 1) .. string.char(flags + 1) .. string.sub(data, 3)
redis.call("SET", key, updated, "PX", ttl)
return {3, updated}
`

var consumeLua = redis.NewScript(consumeScript)

// Store persists refresh records in Redis. Records self-expire with their
// token, and a per-subject set of lineage ids supports subject-wide
// revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a refresh record [Store] namespaced under prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":rr:" + jti
}

func (s *Store) subjectKey(subject string) string {
	return s.prefix + ":sl:" + subject
}

// Save persists a record with the given TTL and indexes its lineage under the
// subject. TTL must match the token expiry so the record dies with the token.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("record ttl must be positive")
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.JTI), data, ttl)
		pipe.SAdd(ctx, s.subjectKey(rec.Subject), rec.Lineage)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Consume atomically marks the record consumed and returns it. Exactly one
// concurrent caller can succeed; the rest observe [ErrRecordConsumed].
func (s *Store) Consume(ctx context.Context, jti string) (*Record, error) {
	result, err := consumeLua.Run(ctx, s.redis, []string{s.key(jti)}, time.Now().Unix()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid consume script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid consume script status", ErrRedisUnavailable)
	}

	switch code {
	case consumeStatusNotFound:
		return nil, ErrRecordNotFound
	case consumeStatusExpired:
		return nil, ErrRecordExpired
	case consumeStatusConsumed:
		return nil, ErrRecordConsumed
	case consumeStatusOK:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing consume payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid consume payload", ErrRedisUnavailable)
		}

		rec, decErr := Decode(blob)
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, decErr)
		}
		rec.JTI = jti
		return rec, nil
	case consumeStatusCorrupt:
		return nil, ErrRecordCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown consume script status", ErrRedisUnavailable)
	}
}

// Get fetches a record without mutating it. Expired or missing records return
// [ErrRecordNotFound].
func (s *Store) Get(ctx context.Context, jti string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	rec.JTI = jti

	if time.Now().Unix() >= rec.ExpiresAt {
		return nil, ErrRecordNotFound
	}

	return rec, nil
}

// Delete removes a record and drops its lineage from the subject index.
// Used by logout; missing records are not an error.
func (s *Store) Delete(ctx context.Context, jti, subject, lineage string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(jti))
		if subject != "" && lineage != "" {
			pipe.SRem(ctx, s.subjectKey(subject), lineage)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Lineages returns the lineage ids recorded for a subject. Dead lineages may
// linger until subject-wide revocation clears the set; revoking them again is
// harmless.
func (s *Store) Lineages(ctx context.Context, subject string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// ClearSubject drops the whole lineage index for a subject.
func (s *Store) ClearSubject(ctx context.Context, subject string) error {
	if err := s.redis.Del(ctx, s.subjectKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports point-in-time Redis availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
