package authengine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/internal"
)

// resetTokenTTL bounds how long a password-reset challenge stays valid.
const resetTokenTTL = time.Hour

// ChangePassword replaces the user's credential after re-verifying the
// current password. The new password must satisfy the strength policy and
// must differ from the current one. Every other session of the user is
// revoked so a stolen refresh token does not survive the change.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.hasher.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChangeFail, false, user.TenantID, user.ID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if same, _ := e.hasher.Verify(next, user.PasswordHash); same {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrPasswordReuse
	}

	if valid, problems := e.config.Password.Policy.Check(next); !valid {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChangeFail, false, user.TenantID, user.ID, ErrWeakPassword, map[string]string{
			"problems": strings.Join(problems, "; "),
		})
		return ErrWeakPassword
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	e.revokeAllSessions(ctx, user.TenantID, user.ID)

	e.metricInc(MetricPasswordChangeSuccess)
	e.events.SecurityEvent("password_changed", eventlog.SeverityLow, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditPasswordChanged, true, user.TenantID, user.ID, nil, nil)
	return nil
}

// ForgotPassword starts a password reset. The returned token is handed to
// the application's delivery layer (email); it is never logged. An unknown
// email yields an empty token and a nil error, so nothing the caller can
// surface reveals whether the address is registered.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (string, error) {
	if e == nil || e.users == nil {
		return "", ErrEngineNotReady
	}

	user, err := e.users.FindActiveByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}

	token, err := internal.NewVerificationToken()
	if err != nil {
		return "", err
	}

	expires := time.Now().Add(resetTokenTTL)
	if err := e.users.SetPasswordReset(ctx, user.ID, internal.HashToken(token), expires); err != nil {
		return "", err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.events.AuthEvent("password_reset_requested", eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditPasswordResetReq, true, user.TenantID, user.ID, nil, nil)

	return token, nil
}

// ResetPassword completes a reset challenge. The token is single-use: it is
// cleared on success, and all of the user's sessions are revoked.
func (e *Engine) ResetPassword(ctx context.Context, token, next string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByPasswordResetToken(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditPasswordResetFail, false, "", "", ErrResetInvalid, nil)
			return ErrResetInvalid
		}
		return err
	}

	if user.PasswordResetExpires == nil || user.PasswordResetExpires.Before(time.Now()) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordResetFail, false, user.TenantID, user.ID, ErrResetInvalid, map[string]string{"reason": "expired"})
		return ErrResetInvalid
	}

	if valid, problems := e.config.Password.Policy.Check(next); !valid {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordResetFail, false, user.TenantID, user.ID, ErrWeakPassword, map[string]string{
			"problems": strings.Join(problems, "; "),
		})
		return ErrWeakPassword
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := e.users.ClearPasswordReset(ctx, user.ID); err != nil {
		e.events.Error(err, eventlog.Fields{"op": "clear_password_reset", "user_id": user.ID})
	}

	e.revokeAllSessions(ctx, user.TenantID, user.ID)

	e.metricInc(MetricPasswordResetSuccess)
	e.events.SecurityEvent("password_reset_confirmed", eventlog.SeverityLow, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditPasswordResetDone, true, user.TenantID, user.ID, nil, nil)
	return nil
}

// VerifyEmail consumes an email-verification token, marking the address
// verified and promoting a pending account to active.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByEmailVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrVerificationInvalid
		}
		return err
	}

	if err := e.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerified)
	e.events.AuthEvent("email_verified", eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditEmailVerified, true, user.TenantID, user.ID, nil, nil)
	return nil
}

// revokeAllSessions is the best-effort logout-everywhere used after a
// credential change. Failures are logged, never surfaced.
func (e *Engine) revokeAllSessions(ctx context.Context, tenantID, userID string) {
	if e.sessions == nil {
		return
	}
	if _, err := e.sessions.RevokeAllForUser(ctx, tenantID, userID, time.Now()); err != nil {
		e.events.Error(err, eventlog.Fields{"op": "revoke_all_sessions", "user_id": userID})
	}
}
