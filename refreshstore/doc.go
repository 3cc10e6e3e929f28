// Package refreshstore persists the server-side state behind refresh tokens.
//
// Every issued refresh token has a matching [Record] keyed by the token's
// jti. A record carries the subject, the lineage id shared by the whole
// rotation chain, the parent jti, and a consumed flag. Records are stored as
// compact binary blobs with the TTL of the token itself, so stale state ages
// out of Redis without sweepers.
//
// # Consume semantics
//
// [Store.Consume] is the only mutation rotation performs and runs as a Lua
// script, so the read-check-flip sequence is atomic. Concurrent consumers of
// the same jti see exactly one success; every other caller gets
// [ErrRecordConsumed], which the caller treats as token reuse. The script
// flips the consumed bit in place and rewrites the value with its remaining
// TTL, keeping a tombstone of the consumed record around until the token
// would have expired anyway.
//
// # Subject index
//
// Save adds the record's lineage to a per-subject set. The set is the fanout
// point for subject-wide revocation: password changes and administrative
// kills read it to find every lineage that needs a tombstone.
package refreshstore
