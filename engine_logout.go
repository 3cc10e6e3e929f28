package authkit

import (
	"context"
	"log"
	"strconv"
	"time"
)

// Logout ends the session a refresh token belongs to. The lineage and the
// presented jti are tombstoned for as long as any member could still live, so
// outstanding access tokens from the same login die with it.
//
// The parse tolerates an elapsed expiry: an expired member is still proof of
// lineage membership and may revoke it. Logout is idempotent; repeating it,
// or racing it, just rewrites the same tombstones.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.ParseRefreshAllowExpired(refreshToken)
	if err != nil {
		return mapTokenError(err)
	}

	ttl := e.lineageTombstoneTTL()
	if err := e.revocations.RevokeLineage(ctx, claims.Lineage, ttl); err != nil {
		return unavailable(err)
	}
	if err := e.revocations.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return unavailable(err)
	}

	// Record cleanup is best-effort. The tombstones are authoritative; a
	// leftover record self-expires with its TTL.
	if err := e.refreshStore.Delete(ctx, claims.ID, claims.Subject, claims.Lineage); err != nil {
		log.Print("authkit: refresh record delete failed on logout")
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.Subject, claims.Lineage, claims.ID, nil, nil)

	return nil
}

// LogoutAccess revokes a single access token for the rest of its life. The
// refresh token and the lineage stay usable; this is the narrow "invalidate
// the presented bearer token" operation.
func (e *Engine) LogoutAccess(ctx context.Context, accessToken string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		return mapTokenError(err)
	}

	remaining := time.Until(claims.ExpiresAt.Time) + e.config.Token.Leeway
	if err := e.revocations.RevokeToken(ctx, claims.ID, remaining); err != nil {
		return unavailable(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutAccess, true, claims.Subject, claims.Lineage, claims.ID, nil, nil)

	return nil
}

// RevokeSubject kills every lineage in the subject's index: all sessions, all
// refresh tokens, all outstanding access tokens. Password changes and
// administrative lockouts go through here.
func (e *Engine) RevokeSubject(ctx context.Context, subject string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if subject == "" {
		return ErrUnknownSubject
	}

	lineages, err := e.refreshStore.Lineages(ctx, subject)
	if err != nil {
		return unavailable(err)
	}

	ttl := e.lineageTombstoneTTL()
	for _, lineage := range lineages {
		if err := e.revocations.RevokeLineage(ctx, lineage, ttl); err != nil {
			return unavailable(err)
		}
	}

	if err := e.refreshStore.ClearSubject(ctx, subject); err != nil {
		log.Print("authkit: subject lineage index clear failed")
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventSubjectRevoked, true, subject, "", "", nil, func() map[string]string {
		return map[string]string{
			"lineages": strconv.Itoa(len(lineages)),
		}
	})

	return nil
}
