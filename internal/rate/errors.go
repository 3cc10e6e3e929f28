package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted attempt budget inside the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures. Callers treat it as
	// uncertainty and reject rather than allow.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
