// Package authkit provides session authentication for server workloads: JWT
// access tokens, rotating refresh tokens with reuse detection, Redis-backed
// revocation, login rate limiting, and password management over a
// caller-supplied identity store.
//
// Engine methods are safe for concurrent use after initialization through
// [Builder.Build].
//
// # Token model
//
// A login opens a lineage: a chain of refresh tokens descending from one
// authentication. Each [Engine.Refresh] consumes the presented token exactly
// once and mints a successor in the same lineage. Presenting a consumed token
// again is treated as theft; the whole lineage is revoked and the caller gets
// [ErrTokenReuseDetected]. Access tokens carry their lineage id, so revoking
// a lineage invalidates its access tokens too.
//
// # Failure direction
//
// Anything that leaves token or limiter state uncertain (Redis down, backend
// errors) fails the operation with [ErrUnavailable]. The engine never accepts
// a credential it could not fully check.
//
// # Architecture boundaries
//
// authkit is the public surface: [Engine], [Builder], [Config], the error
// taxonomy, and value types. Token encoding, password hashing, storage, and
// rate limiting live in the token, password, refreshstore, and revocation
// sub-packages and are composed by Build; applications normally import only
// this package and middleware.
package authkit
