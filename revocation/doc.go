// Package revocation tracks invalidated tokens and lineages as self-expiring
// Redis tombstones.
//
// A tombstone is a SET with TTL; presence alone rejects the token. Entries
// expire when the token they cover would have expired anyway, so the registry
// never needs sweeping. Lineage tombstones reject every descendant of one
// login at once, which is how reuse detection kills a whole rotation chain.
package revocation
