// Package rate implements the Redis fixed-window counters behind login and
// refresh throttling.
//
// # Window semantics
//
// Counters are INCR plus a conditional EXPIRE on the first hit. Key prefixes
// under the engine namespace:
//   - rl:li: — login failures per identifier
//   - rl:ip: — login failures per client IP
//   - rl:rf: — rotations per lineage
//
// Checks are read-only so a throttled login never reaches credential
// verification. Counter uncertainty surfaces as ErrRedisUnavailable and the
// caller rejects.
package rate
