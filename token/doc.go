// Package token issues and verifies the signed access and refresh tokens used by
// the authentication engine. Both kinds share one codec and signing key set and
// differ only in claim shape and lifetime.
package token
