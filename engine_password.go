package authkit

import (
	"context"
	"errors"
	"log"
)

// ChangePassword verifies the current password, installs the new hash, and
// revokes every outstanding session of the subject. A stolen token does not
// survive the password change that was meant to evict it.
//
// The old password must verify even for a caller holding a valid session;
// this is the one operation that mutates a credential and it demands fresh
// proof of knowledge.
func (e *Engine) ChangePassword(ctx context.Context, subject, oldPassword, newPassword string) error {
	if e == nil || e.hasher == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	if subject == "" || oldPassword == "" {
		e.notePasswordChangeFailure(ctx, subject, ErrInvalidCredentials, "missing_input")
		return ErrInvalidCredentials
	}

	identity, err := e.provider.IdentityByID(subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.notePasswordChangeFailure(ctx, subject, ErrIdentityNotFound, "subject_missing")
			return ErrIdentityNotFound
		}
		e.notePasswordChangeFailure(ctx, subject, ErrUnavailable, "provider_unavailable")
		return unavailable(err)
	}

	if statusErr := accountStatusError(identity.Status); statusErr != nil {
		e.notePasswordChangeFailure(ctx, subject, statusErr, "account_status")
		return ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(oldPassword, identity.PasswordHash)
	if err != nil || !ok {
		e.notePasswordChangeFailure(ctx, subject, ErrInvalidCredentials, "password_mismatch")
		return ErrInvalidCredentials
	}
	oldPassword = ""

	if len(newPassword) < e.config.Password.MinLength {
		e.notePasswordChangeFailure(ctx, subject, ErrPasswordPolicy, "too_short")
		return ErrPasswordPolicy
	}

	newHash, err := e.hasher.Hash(newPassword)
	newPassword = ""
	if err != nil {
		e.notePasswordChangeFailure(ctx, subject, ErrPasswordPolicy, "hash_failed")
		return ErrPasswordPolicy
	}

	if err := e.provider.UpdatePasswordHash(subject, newHash); err != nil {
		e.notePasswordChangeFailure(ctx, subject, ErrUnavailable, "update_failed")
		return unavailable(err)
	}

	// The hash is installed; everything minted against the old credential
	// must die. A failure here leaves sessions alive against the new
	// password, so it is surfaced, not logged away.
	if err := e.RevokeSubject(ctx, subject); err != nil {
		e.notePasswordChangeFailure(ctx, subject, ErrUnavailable, "revoke_failed")
		return unavailable(err)
	}

	// The subject just proved the credential; stale failure counters only
	// punish them.
	if err := e.limiter.ResetLogin(ctx, identity.Identifier, clientIPFromContext(ctx)); err != nil {
		log.Print("authkit: login limiter reset failed after password change")
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, subject, "", "", nil, nil)

	return nil
}

func (e *Engine) notePasswordChangeFailure(ctx context.Context, subject string, err error, reason string) {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subject, "", "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}
