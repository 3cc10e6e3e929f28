package authkit

import "time"

// AccountStatus is the lifecycle state of an identity. Only active accounts
// can log in or rotate tokens.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountLocked
	AccountDisabled
)

// Identity is the account record returned by [IdentityProvider]. Subject is
// the stable internal id minted into tokens; Identifier is what the user
// types at login (username or email, the provider decides).
type Identity struct {
	Subject      string
	Identifier   string
	PasswordHash string
	Roles        []string
	Status       AccountStatus
}

// IdentityProvider is the interface callers implement to plug their user
// database into the engine. A missing identity must be reported with
// [ErrIdentityNotFound] (wrapping it is fine); any other error is treated as
// backend unavailability and fails the operation closed.
//
// Roles returned here are authoritative: refresh re-reads them, so role
// changes propagate within one access-token lifetime.
type IdentityProvider interface {
	IdentityByIdentifier(identifier string) (Identity, error)
	IdentityByID(subject string) (Identity, error)
	UpdatePasswordHash(subject string, newHash string) error
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult is the verified view of an access token returned by
// [Engine.VerifyAccess]. It is what handlers receive from the middleware.
type AuthResult struct {
	Subject   string
	Roles     []string
	Lineage   string
	TokenID   string
	ExpiresAt time.Time
}

// HasRole reports whether the result carries the given role.
func (r *AuthResult) HasRole(role string) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}
