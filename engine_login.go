package authengine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/internal"
	"github.com/caseflow-io/authengine/jwt"
	"github.com/caseflow-io/authengine/mfa"
	"github.com/caseflow-io/authengine/session"
	"github.com/google/uuid"
)

// Login verifies credentials, enforces the lockout policy and MFA gate, and
// on success issues a fresh access/refresh token pair. Callers should attach
// the client IP and user agent via [WithClientIP] and [WithUserAgent] so the
// session row and audit records carry them.
//
// Every credential failure collapses to [ErrInvalidCredentials]; the caller
// learns nothing about whether the email exists or which check failed.
// [ErrMFARequired] is not a failure state: the password was correct and the
// caller should re-prompt for a code.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*SessionResult, error) {
	if e == nil || e.users == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now()
	email := normalizeEmail(req.Email)

	user, err := e.users.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.events.AuthEvent("login_failed", eventlog.Fields{"reason": "user_not_found"})
			e.emitAudit(ctx, auditLoginFailed, false, "", "", ErrInvalidCredentials, map[string]string{"reason": "user_not_found"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	switch user.Status {
	case StatusSuspended:
		e.metricInc(MetricLoginFailure)
		e.events.SecurityEvent("suspended_account_login", eventlog.SeverityHigh, eventlog.Fields{
			"user_id":   user.ID,
			"tenant_id": user.TenantID,
		})
		e.emitAudit(ctx, auditLoginFailed, false, user.TenantID, user.ID, ErrAccountSuspended, nil)
		return nil, ErrAccountSuspended
	case StatusDeleted:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailed, false, user.TenantID, user.ID, ErrAccountDeleted, nil)
		return nil, ErrAccountDeleted
	}

	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		remaining := int(user.LockedUntil.Sub(now).Minutes()) + 1
		e.metricInc(MetricLoginLockedOut)
		e.events.SecurityEvent("login_while_locked", eventlog.SeverityMedium, eventlog.Fields{
			"user_id":           user.ID,
			"tenant_id":         user.TenantID,
			"remaining_minutes": remaining,
		})
		e.emitAudit(ctx, auditLoginLockedOut, false, user.TenantID, user.ID, ErrAccountLocked, map[string]string{
			"remaining_minutes": strconv.Itoa(remaining),
		})
		return nil, ErrAccountLocked
	}

	ok, err := e.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.recordFailedAttempt(ctx, user, now)
	}

	if user.MFAEnabled {
		if req.MFACode == "" {
			e.metricInc(MetricMFARequired)
			e.emitAudit(ctx, auditMFAChallenge, true, user.TenantID, user.ID, nil, nil)
			return nil, ErrMFARequired
		}
		if err := e.verifyMFACode(ctx, user, req.MFACode, now); err != nil {
			return nil, err
		}
	}

	if err := e.users.RecordLoginSuccess(ctx, user.ID, now, clientIPFromContext(ctx)); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	e.maybeRehash(ctx, user, req.Password)

	result, err := e.issueSession(ctx, user, deviceFromContext(ctx), "", now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.events.AuthEvent("login_success", eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditLoginSuccess, true, user.TenantID, user.ID, nil, nil)

	return result, nil
}

// recordFailedAttempt bumps the failed counter atomically and locks the
// account when the post-increment count reaches the threshold. The caller
// always surfaces ErrInvalidCredentials; which branch ran is visible only in
// events and audit records.
func (e *Engine) recordFailedAttempt(ctx context.Context, user *User, now time.Time) error {
	count, err := e.users.IncrementFailedLogins(ctx, user.ID)
	if err != nil {
		e.events.Error(err, eventlog.Fields{"op": "increment_failed_logins", "user_id": user.ID})
		return ErrInvalidCredentials
	}

	if count >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.Duration)
		if err := e.users.SetLockout(ctx, user.ID, until); err != nil {
			e.events.Error(err, eventlog.Fields{"op": "set_lockout", "user_id": user.ID})
		}
		e.metricInc(MetricAccountLocked)
		e.events.SecurityEvent("account_locked", eventlog.SeverityHigh, eventlog.Fields{
			"user_id":      user.ID,
			"tenant_id":    user.TenantID,
			"attempts":     count,
			"locked_until": until,
		})
		e.emitAudit(ctx, auditAccountLocked, false, user.TenantID, user.ID, ErrInvalidCredentials, map[string]string{
			"attempts": strconv.Itoa(count),
		})
		return ErrInvalidCredentials
	}

	e.metricInc(MetricLoginFailure)
	e.events.AuthEvent("login_failed", eventlog.Fields{
		"user_id":  user.ID,
		"attempts": count,
		"reason":   "bad_password",
	})
	e.emitAudit(ctx, auditLoginFailed, false, user.TenantID, user.ID, ErrInvalidCredentials, map[string]string{
		"attempts": strconv.Itoa(count),
	})
	return ErrInvalidCredentials
}

// verifyMFACode satisfies the MFA gate with either a current TOTP code or an
// unused backup code. A consumed backup code is removed from the stored list
// before the login proceeds.
func (e *Engine) verifyMFACode(ctx context.Context, user *User, code string, now time.Time) error {
	if e.totp.ValidateTOTP(user.MFASecret, code, now) {
		e.metricInc(MetricMFASuccess)
		return nil
	}

	if remaining, ok := mfa.ConsumeBackupCode(user.MFABackupCodes, code); ok {
		if err := e.users.ReplaceBackupCodes(ctx, user.ID, remaining); err != nil {
			e.events.Error(err, eventlog.Fields{"op": "replace_backup_codes", "user_id": user.ID})
			return ErrMFAInvalid
		}
		user.MFABackupCodes = remaining
		e.metricInc(MetricBackupCodeUsed)
		e.events.SecurityEvent("backup_code_used", eventlog.SeverityLow, eventlog.Fields{
			"user_id":   user.ID,
			"tenant_id": user.TenantID,
			"remaining": len(remaining),
		})
		e.emitAudit(ctx, auditBackupCodeUsed, true, user.TenantID, user.ID, nil, map[string]string{
			"remaining": strconv.Itoa(len(remaining)),
		})
		return nil
	}

	e.metricInc(MetricMFAFailure)
	e.events.SecurityEvent("mfa_failed", eventlog.SeverityMedium, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditMFAFailed, false, user.TenantID, user.ID, ErrMFAInvalid, nil)
	return ErrMFAInvalid
}

// maybeRehash upgrades a stored hash produced under weaker cost parameters.
// Best-effort: any failure is logged and the login proceeds.
func (e *Engine) maybeRehash(ctx context.Context, user *User, plain string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.events.Error(err, eventlog.Fields{"op": "rehash_on_login", "user_id": user.ID})
		return
	}
	user.PasswordHash = hash
}

// issueSession mints an access/refresh pair for user, persists the refresh
// row bound to device, and enforces the per-user token cap. replacedBy is
// set on rotation so the new row chains back to its predecessor.
func (e *Engine) issueSession(ctx context.Context, user *User, device session.DeviceInfo, replacedBy string, now time.Time) (*SessionResult, error) {
	org := e.lookupOrganization(ctx, user.TenantID)

	plan := ""
	if org != nil {
		plan = string(org.Plan)
	}

	access, err := e.jwtManager.IssueAccess(jwt.AccessClaims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Plan:     plan,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}

	tokenID := uuid.NewString()
	refresh, err := e.jwtManager.IssueRefresh(jwt.RefreshClaims{
		UserID:      user.ID,
		TenantID:    user.TenantID,
		TokenID:     tokenID,
		Fingerprint: device.Fingerprint,
	})
	if err != nil {
		return nil, err
	}

	row := &session.RefreshToken{
		ID:         tokenID,
		UserID:     user.ID,
		TenantID:   user.TenantID,
		TokenHash:  internal.HashToken(refresh),
		Device:     device,
		IssuedAt:   now,
		ExpiresAt:  now.Add(e.config.JWT.RefreshTTL),
		ReplacedBy: replacedBy,
	}
	if err := e.sessions.Create(ctx, row); err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)

	e.enforceTokenCap(ctx, user.TenantID, user.ID, now)

	return &SessionResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(e.config.JWT.AccessTTL.Seconds()),
		User:         sanitizeUser(user),
		Organization: sanitizeOrganization(org),
	}, nil
}

// lookupOrganization resolves the tenant projection. Best-effort: without a
// provider, or when the lookup fails, the session result simply omits the
// organization.
func (e *Engine) lookupOrganization(ctx context.Context, tenantID string) *Organization {
	if e.orgs == nil || tenantID == "" {
		return nil
	}
	org, err := e.orgs.FindByID(ctx, tenantID)
	if err != nil {
		e.events.Debug("organization lookup failed", eventlog.Fields{"tenant_id": tenantID, "error": err.Error()})
		return nil
	}
	return org
}
