package authengine

import (
	"context"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/mfa"
)

// BeginMFAEnrollment generates a TOTP secret and a batch of single-use
// backup codes for the user and persists them in a disabled state. MFA does
// not gate logins until [Engine.ConfirmMFA] proves the user's authenticator
// produces valid codes. The returned enrollment carries the provisioning
// URL and the backup codes; this is the only time the codes are visible.
func (e *Engine) BeginMFAEnrollment(ctx context.Context, userID string) (*mfa.Enrollment, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollment, err := e.totp.Enroll(user.Email)
	if err != nil {
		return nil, err
	}

	if err := e.users.UpdateMFA(ctx, user.ID, false, enrollment.Secret, enrollment.BackupCodes); err != nil {
		return nil, err
	}

	return enrollment, nil
}

// ConfirmMFA activates MFA after the user proves possession of the enrolled
// secret with a current TOTP code.
func (e *Engine) ConfirmMFA(ctx context.Context, userID, code string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" {
		return ErrMFANotEnrolled
	}

	if !e.totp.ValidateTOTP(user.MFASecret, code, time.Now()) {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditMFAFailed, false, user.TenantID, user.ID, ErrMFAInvalid, map[string]string{"phase": "enrollment"})
		return ErrMFAInvalid
	}

	if err := e.users.UpdateMFA(ctx, user.ID, true, user.MFASecret, user.MFABackupCodes); err != nil {
		return err
	}

	e.events.SecurityEvent("mfa_enrolled", eventlog.SeverityLow, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditMFAEnrolled, true, user.TenantID, user.ID, nil, nil)
	return nil
}

// DisableMFA turns MFA off after re-verifying the account password. The
// stored secret and remaining backup codes are discarded; re-enabling later
// issues a fresh secret and a fresh code batch.
func (e *Engine) DisableMFA(ctx context.Context, userID, password string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return ErrMFANotEnrolled
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	if err := e.users.UpdateMFA(ctx, user.ID, false, "", nil); err != nil {
		return err
	}

	e.events.SecurityEvent("mfa_disabled", eventlog.SeverityMedium, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitAudit(ctx, auditMFADisabled, true, user.TenantID, user.ID, nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the remaining backup codes with a fresh
// batch after re-verifying the account password. Requires active MFA.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	codes, err := e.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	if err := e.users.ReplaceBackupCodes(ctx, user.ID, codes); err != nil {
		return nil, err
	}

	e.events.SecurityEvent("backup_codes_regenerated", eventlog.SeverityLow, eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	return codes, nil
}
