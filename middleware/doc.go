// Package middleware adapts the authkit engine to net/http.
//
// [Guard] reads the Authorization header, verifies the bearer token through
// Engine.VerifyAccess, enforces required roles through Engine.Authorize, and
// stores the verified [github.com/craftdex/authkit.AuthResult] in the request
// context. [ClientIP] records the caller's address for the engine's limiter
// and audit trail; mount it on unauthenticated routes (login, refresh) too.
//
// This package translates HTTP semantics into Engine calls and nothing more:
// it never parses tokens itself, never touches Redis, and reports every
// rejection to the client as the same 401.
package middleware
