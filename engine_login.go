package authkit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/craftdex/authkit/refreshstore"
)

// Login authenticates an identifier/password pair and opens a fresh lineage.
//
// The limiter is consulted before the provider or hasher, so throttled
// attempts cost no hashing work and reveal nothing about the account. Unknown
// identifier, wrong password, and locked or disabled accounts all surface as
// ErrInvalidCredentials; the audit trail keeps the specific reason.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*TokenPair, error) {
	if e == nil || e.hasher == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, identifier, ip); err != nil {
		mapped := mapRateError(err)
		if errors.Is(mapped, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", ErrRateLimited, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
			e.emitRateLimit(ctx, "login", "", func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
		} else {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", mapped, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     "limiter_unavailable",
				}
			})
		}
		return nil, mapped
	}

	if pass == "" {
		e.noteLoginFailure(ctx, identifier, ip, "", "empty_password")
		return nil, ErrInvalidCredentials
	}

	identity, err := e.provider.IdentityByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.noteLoginFailure(ctx, identifier, ip, "", "identity_not_found")
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "provider_unavailable",
			}
		})
		return nil, unavailable(err)
	}

	ok, err := e.hasher.Verify(pass, identity.PasswordHash)
	if err != nil || !ok {
		e.noteLoginFailure(ctx, identifier, ip, identity.Subject, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	// Status is checked after the password so rejected attempts stay
	// indistinguishable from wrong-password ones, in timing and in error.
	if statusErr := accountStatusError(identity.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.Subject, "", "", statusErr, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "account_status",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		if needs, upErr := e.hasher.NeedsUpgrade(identity.PasswordHash); upErr == nil && needs {
			// Rehash is best-effort and must not block a successful login.
			if upgraded, hashErr := e.hasher.Hash(pass); hashErr == nil {
				if updErr := e.provider.UpdatePasswordHash(identity.Subject, upgraded); updErr != nil {
					log.Print("authkit: password hash upgrade update failed")
				}
			} else {
				log.Print("authkit: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	pair, lineage, jti, err := e.openLineage(ctx, identity)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.Subject, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "lineage_open_failed",
			}
		})
		return nil, err
	}

	// Counter reset is best-effort: the user is in either way, and stale
	// counters die with the window.
	if err := e.limiter.ResetLogin(ctx, identifier, ip); err != nil {
		log.Print("authkit: login limiter reset failed")
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.Subject, lineage, jti, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return pair, nil
}

// openLineage mints a refresh/access pair under a brand-new lineage id and
// persists the refresh record before anything is returned to the caller.
func (e *Engine) openLineage(ctx context.Context, identity Identity) (*TokenPair, string, string, error) {
	lineage := uuid.NewString()
	now := time.Now()

	refreshStr, refreshClaims, err := e.codec.IssueRefresh(identity.Subject, lineage, "", e.config.Token.RefreshTTL)
	if err != nil {
		return nil, "", "", err
	}

	rec := &refreshstore.Record{
		JTI:              refreshClaims.ID,
		Subject:          identity.Subject,
		Lineage:          lineage,
		IssuedAt:         refreshClaims.IssuedAt.Time.Unix(),
		ExpiresAt:        refreshClaims.ExpiresAt.Time.Unix(),
		LineageCreatedAt: now.Unix(),
	}
	if err := e.refreshStore.Save(ctx, rec, e.config.Token.RefreshTTL); err != nil {
		return nil, "", "", unavailable(err)
	}

	accessStr, accessClaims, err := e.codec.IssueAccess(identity.Subject, lineage, identity.Roles)
	if err != nil {
		return nil, "", "", err
	}

	return &TokenPair{
		AccessToken:      accessStr,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refreshStr,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, lineage, refreshClaims.ID, nil
}

// noteLoginFailure counts a credential failure against the limiter window and
// records it. The count update is best-effort: the attempt is denied either
// way, and the next check fails closed if the limiter is unreachable.
func (e *Engine) noteLoginFailure(ctx context.Context, identifier, ip, subject, reason string) {
	if err := e.limiter.RecordLoginFailure(ctx, identifier, ip); err != nil {
		log.Print("authkit: login failure count update failed")
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, subject, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})
}

func accountStatusError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	case AccountLocked:
		return errStatusLocked
	default:
		return errStatusDisabled
	}
}
