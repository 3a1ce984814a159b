package authengine

import (
	"context"
	"time"
)

// Audit action kinds. Each failure branch carries its own action so a log
// reader never has to guess which check rejected the attempt.
const (
	auditLoginSuccess        = "login_success"
	auditLoginFailed         = "login_failed"
	auditLoginLockedOut      = "login_locked_out"
	auditAccountLocked       = "account_locked"
	auditMFAChallenge        = "mfa_challenge_issued"
	auditMFAFailed           = "mfa_failed"
	auditBackupCodeUsed      = "backup_code_used"
	auditRefreshSuccess      = "refresh_success"
	auditRefreshFailed       = "refresh_failed"
	auditRefreshReplay       = "refresh_replay_detected"
	auditLogout              = "logout"
	auditLogoutAll           = "logout_all"
	auditRegistration        = "user_registered"
	auditOrganizationCreated = "organization_created"
	auditPasswordChanged     = "password_changed"
	auditPasswordChangeFail  = "password_change_failed"
	auditPasswordResetReq    = "password_reset_requested"
	auditPasswordResetDone   = "password_reset_confirmed"
	auditPasswordResetFail   = "password_reset_failed"
	auditEmailVerified       = "email_verified"
	auditMFAEnrolled         = "mfa_enrolled"
	auditMFADisabled         = "mfa_disabled"
)

func (e *Engine) emitAudit(ctx context.Context, action string, success bool, tenantID, userID string, opErr error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	record := AuditRecord{
		Timestamp: time.Now(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		record.Error = opErr.Error()
	}

	e.audit.Log(ctx, record)
}

func (e *Engine) emitEntityAudit(ctx context.Context, action, tenantID, userID, entityType, entityID string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Log(ctx, AuditRecord{
		Timestamp:  time.Now(),
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		RequestID:  requestIDFromContext(ctx),
		Success:    true,
		Metadata:   metadata,
	})
}
