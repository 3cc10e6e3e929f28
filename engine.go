package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftdex/authkit/internal/rate"
	"github.com/craftdex/authkit/password"
	"github.com/craftdex/authkit/refreshstore"
	"github.com/craftdex/authkit/revocation"
	"github.com/craftdex/authkit/token"
)

// Engine is the session manager. It owns the token codec, the password
// hasher, the login limiter, the refresh record store, and the revocation
// registry, and exposes the authentication operations built on them.
//
// An Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config       Config
	codec        *token.Codec
	hasher       *password.Hasher
	limiter      *rate.Limiter
	refreshStore *refreshstore.Store
	revocations  *revocation.Registry
	audit        *auditDispatcher
	metrics      *Metrics
	provider     IdentityProvider
}

// Close drains the audit dispatcher. The engine must not be used afterward.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.audit != nil {
		e.audit.Close()
	}
	return nil
}

// AuditDropped reports how many audit events were discarded under load.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyAccess checks an access token end to end: signature, expiry, claim
// shape, and revocation state for both the token and its lineage. The
// returned AuthResult is the trusted identity for the request.
//
// Revocation lookups that fail are treated as uncertainty and rejected with
// ErrUnavailable, never accepted optimistically.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, mapTokenError(err)
	}

	revoked, err := e.revocations.IsRevoked(ctx, claims.ID, claims.Lineage)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, unavailable(err)
	}
	if revoked {
		e.metricInc(MetricVerifyFailure)
		e.metricInc(MetricRevokedTokenRejected)
		return nil, ErrTokenRevoked
	}

	e.metricInc(MetricVerifySuccess)
	return &AuthResult{
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		Lineage:   claims.Lineage,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authorize checks that the verified result carries every required role. It
// is pure: no I/O, no engine state. With no required roles it degrades to an
// authentication-only check. A nil result always fails.
func (e *Engine) Authorize(res *AuthResult, required ...string) error {
	if res == nil || res.Subject == "" {
		return ErrForbidden
	}
	for _, role := range required {
		if !res.HasRole(role) {
			return ErrForbidden
		}
	}
	return nil
}

// mapTokenError translates codec sentinels into the public taxonomy. Unknown
// verification keys count as bad signatures: the token cannot be trusted.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrExpired
	case errors.Is(err, token.ErrBadSignature), errors.Is(err, token.ErrUnknownKey):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

// unavailable wraps an infrastructure failure so callers can match
// ErrUnavailable while logs keep the cause.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// mapRateError translates limiter sentinels. Limiter infrastructure failures
// reject the attempt: an unknown counter state must not admit logins.
func mapRateError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return unavailable(err)
}

// lineageTombstoneTTL is the upper bound on how long any member of a lineage
// can still be live, so a lineage tombstone with this TTL outlasts them all.
func (e *Engine) lineageTombstoneTTL() time.Duration {
	return e.config.Token.RefreshTTL + e.config.Token.Leeway
}
