package authkit

import "errors"

var (
	// ErrUnauthorized is the uniform outward-facing failure. The middleware
	// maps every verification failure onto it so callers cannot probe which
	// check rejected them.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown identifier, wrong password, and
	// non-active account alike. Login never distinguishes them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityNotFound is the sentinel IdentityProvider implementations
	// return (possibly wrapped) for a missing identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrRateLimited rejects an attempt before credentials are examined.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformed rejects tokens that are not well-formed or carry the wrong
	// claim shape for the operation.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature rejects tokens whose signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired rejects tokens past their lifetime, including refresh tokens
	// whose server-side record already aged out.
	ErrExpired = errors.New("token expired")
	// ErrTokenRevoked rejects tokens that were explicitly revoked before
	// their natural expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenReuseDetected reports a replayed refresh token. The whole
	// lineage is dead by the time the caller sees this.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrUnknownSubject is returned when a rotating token's subject no longer
	// resolves or is no longer active.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrForbidden is returned by Authorize when a required role is missing.
	ErrForbidden = errors.New("forbidden")
	// ErrPasswordPolicy rejects a new password below the configured floor.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrUnavailable wraps backend failures. State is uncertain; callers must
	// reject, never assume validity.
	ErrUnavailable = errors.New("auth backend unavailable")
	// ErrEngineNotReady is returned by operations on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Builder misuse sentinels.
var (
	ErrNilConfig   = errors.New("nil config")
	ErrNilRedis    = errors.New("redis client required")
	ErrNilProvider = errors.New("identity provider required")
)

// Internal status markers. Login and refresh report these to the audit trail
// while the public error stays uniformly ErrInvalidCredentials.
var (
	errStatusLocked   = errors.New("account locked")
	errStatusDisabled = errors.New("account disabled")
)
