package authkit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/craftdex/authkit/refreshstore"
)

// Refresh rotates a refresh token: the presented token is consumed exactly
// once and a new pair is minted under the same lineage. A token that was
// already rotated away, or that belongs to a revoked lineage, is a replay;
// the whole lineage is killed and the caller sees ErrTokenReuseDetected.
//
// The consume mark is the authoritative rotation guard and is never rolled
// back. If a later step fails the lineage simply has no live refresh token
// left, which is the safe direction.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.ParseRefresh(refreshToken)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, mapped
	}

	if err := e.limiter.CheckRefresh(ctx, claims.Lineage); err != nil {
		mapped := mapRateError(err)
		if errors.Is(mapped, ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.Subject, claims.Lineage, claims.ID, ErrRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", claims.Subject, func() map[string]string {
				return map[string]string{
					"lineage": claims.Lineage,
				}
			})
		} else {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, mapped, func() map[string]string {
				return map[string]string{
					"reason": "limiter_unavailable",
				}
			})
		}
		return nil, mapped
	}

	revoked, err := e.revocations.IsRevoked(ctx, claims.ID, claims.Lineage)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "revocation_check_failed",
			}
		})
		return nil, unavailable(err)
	}
	if revoked {
		// A tombstoned refresh token showing up again is a replay of a
		// rotated-away or logged-out credential.
		return nil, e.flagRefreshReuse(ctx, claims.Subject, claims.Lineage, claims.ID, "revoked_token_replayed")
	}

	rec, err := e.refreshStore.Consume(ctx, claims.ID)
	if err != nil {
		switch {
		case errors.Is(err, refreshstore.ErrRecordConsumed):
			return nil, e.flagRefreshReuse(ctx, claims.Subject, claims.Lineage, claims.ID, "already_consumed")
		case errors.Is(err, refreshstore.ErrRecordNotFound):
			// Aged out of the store; indistinguishable from a token past its
			// natural life, so it reports as expired rather than as reuse.
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrExpired, func() map[string]string {
				return map[string]string{
					"reason": "record_missing",
				}
			})
			return nil, ErrExpired
		case errors.Is(err, refreshstore.ErrRecordExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrExpired, func() map[string]string {
				return map[string]string{
					"reason": "record_expired",
				}
			})
			return nil, ErrExpired
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrUnavailable, func() map[string]string {
				return map[string]string{
					"reason": "consume_failed",
				}
			})
			return nil, unavailable(err)
		}
	}

	if rec.Subject != claims.Subject || rec.Lineage != claims.Lineage {
		// Stored state and signed claims disagree. Trust neither side;
		// kill the lineage and reject.
		e.revokeLineageLogged(ctx, claims.Lineage)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrMalformed, func() map[string]string {
			return map[string]string{
				"reason": "record_claims_mismatch",
			}
		})
		return nil, ErrMalformed
	}

	// Roles are re-read at every rotation so new access tokens always carry
	// the subject's current role set.
	identity, err := e.provider.IdentityByID(claims.Subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.revokeLineageLogged(ctx, claims.Lineage)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrUnknownSubject, func() map[string]string {
				return map[string]string{
					"reason": "subject_missing",
				}
			})
			return nil, ErrUnknownSubject
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "provider_unavailable",
			}
		})
		return nil, unavailable(err)
	}
	if statusErr := accountStatusError(identity.Status); statusErr != nil {
		e.revokeLineageLogged(ctx, claims.Lineage)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, statusErr, func() map[string]string {
			return map[string]string{
				"reason": "account_status",
			}
		})
		return nil, ErrUnknownSubject
	}

	// A lineage only lives AbsoluteLineageLifetime past its login, however
	// diligently it rotates. The new token's ttl is capped at the remainder.
	ttl := e.config.Token.RefreshTTL
	remaining := time.Until(time.Unix(rec.LineageCreatedAt, 0).Add(e.config.Refresh.AbsoluteLineageLifetime))
	if remaining <= 0 {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrExpired, func() map[string]string {
			return map[string]string{
				"reason": "lineage_exhausted",
			}
		})
		return nil, ErrExpired
	}
	if remaining < ttl {
		ttl = remaining
	}

	refreshStr, newClaims, err := e.codec.IssueRefresh(claims.Subject, claims.Lineage, claims.ID, ttl)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_failed",
			}
		})
		return nil, err
	}

	newRec := &refreshstore.Record{
		JTI:              newClaims.ID,
		Subject:          claims.Subject,
		Lineage:          claims.Lineage,
		Parent:           claims.ID,
		IssuedAt:         newClaims.IssuedAt.Time.Unix(),
		ExpiresAt:        newClaims.ExpiresAt.Time.Unix(),
		LineageCreatedAt: rec.LineageCreatedAt,
	}
	if err := e.refreshStore.Save(ctx, newRec, ttl); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "save_failed",
			}
		})
		return nil, unavailable(err)
	}

	accessStr, accessClaims, err := e.codec.IssueAccess(claims.Subject, claims.Lineage, identity.Roles)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.Lineage, claims.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_failed",
			}
		})
		return nil, err
	}

	// Tombstone the consumed jti for the rest of its natural life. Best
	// effort: the consumed flag already blocks replay through this path, the
	// tombstone just lets the revocation check reject earlier and cheaper.
	if err := e.revocations.RevokeToken(ctx, claims.ID, time.Until(time.Unix(rec.ExpiresAt, 0))); err != nil {
		e.metricInc(MetricRevocationWriteFailure)
		log.Print("authkit: consumed refresh tombstone write failed")
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.Subject, claims.Lineage, newClaims.ID, nil, func() map[string]string {
		return map[string]string{
			"parent": claims.ID,
		}
	})

	return &TokenPair{
		AccessToken:      accessStr,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refreshStr,
		RefreshExpiresAt: newClaims.ExpiresAt.Time,
	}, nil
}

// flagRefreshReuse handles a detected replay: the lineage dies, the event is
// counted and audited, and the caller returns ErrTokenReuseDetected.
func (e *Engine) flagRefreshReuse(ctx context.Context, subject, lineage, jti, reason string) error {
	e.revokeLineageLogged(ctx, lineage)
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, subject, lineage, jti, ErrTokenReuseDetected, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrTokenReuseDetected
}

// revokeLineageLogged writes a lineage tombstone and only logs on failure.
// Used where the caller is already rejecting the request and a lost write
// costs detection latency, not correctness.
func (e *Engine) revokeLineageLogged(ctx context.Context, lineage string) {
	if err := e.revocations.RevokeLineage(ctx, lineage, e.lineageTombstoneTTL()); err != nil {
		e.metricInc(MetricRevocationWriteFailure)
		log.Print("authkit: lineage tombstone write failed")
	}
}
