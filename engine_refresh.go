package authengine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/internal"
	"github.com/caseflow-io/authengine/session"
)

// Rotate exchanges a refresh token for a fresh access/refresh pair. The old
// row is revoked and the new row chains back to it via ReplacedBy, so a
// device's session history forms a linear chain. Of two concurrent calls
// with the same token, exactly one wins; the loser gets [ErrTokenRevoked],
// which is also the replay signal when a stolen token is presented after its
// legitimate holder already rotated.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*SessionResult, error) {
	if e == nil || e.users == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now()

	claims, err := e.jwtManager.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefreshFailed, false, "", "", ErrTokenInvalid, map[string]string{"reason": "bad_signature"})
		return nil, ErrTokenInvalid
	}

	row, err := e.sessions.Rotate(ctx, internal.HashToken(refreshToken), now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenRevoked):
			e.metricInc(MetricRefreshReplayDetected)
			e.events.SecurityEvent("refresh_replay_detected", eventlog.SeverityHigh, eventlog.Fields{
				"user_id":   claims.UserID,
				"tenant_id": claims.TenantID,
				"token_id":  claims.TokenID,
			})
			e.emitAudit(ctx, auditRefreshReplay, false, claims.TenantID, claims.UserID, ErrTokenRevoked, map[string]string{
				"token_id": claims.TokenID,
			})
			return nil, ErrTokenRevoked
		case errors.Is(err, session.ErrTokenExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditRefreshFailed, false, claims.TenantID, claims.UserID, ErrTokenExpired, nil)
			return nil, ErrTokenExpired
		case errors.Is(err, session.ErrTokenNotFound):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditRefreshFailed, false, claims.TenantID, claims.UserID, ErrTokenInvalid, map[string]string{"reason": "unknown_token"})
			return nil, ErrTokenInvalid
		default:
			return nil, err
		}
	}

	user, err := e.users.FindByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditRefreshFailed, false, row.TenantID, row.UserID, ErrUserNotFound, nil)
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status == StatusSuspended {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefreshFailed, false, user.TenantID, user.ID, ErrAccountSuspended, nil)
		return nil, ErrAccountSuspended
	}

	// The new row keeps the device info captured at original issuance, not
	// whatever the current request claims.
	result, err := e.issueSession(ctx, user, row.Device, row.ID, now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.events.AuthEvent("refresh_success", eventlog.Fields{
		"user_id":     user.ID,
		"tenant_id":   user.TenantID,
		"replaced_id": row.ID,
	})
	e.emitAudit(ctx, auditRefreshSuccess, true, user.TenantID, user.ID, nil, map[string]string{
		"replaced_id": row.ID,
	})

	return result, nil
}

// Logout revokes the session behind one refresh token. Idempotent: an
// unknown, expired, or already-revoked token is not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Revoke(ctx, internal.HashToken(refreshToken), time.Now()); err != nil {
		return err
	}

	e.metricInc(MetricLogout)

	tenantID, userID := "", ""
	if claims, err := e.jwtManager.VerifyRefresh(refreshToken); err == nil {
		tenantID, userID = claims.TenantID, claims.UserID
	}
	e.emitAudit(ctx, auditLogout, true, tenantID, userID, nil, nil)
	return nil
}

// LogoutAll revokes every active session of the user ("logout everywhere")
// and returns how many were revoked.
func (e *Engine) LogoutAll(ctx context.Context, tenantID, userID string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	count, err := e.sessions.RevokeAllForUser(ctx, tenantID, userID, time.Now())
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.events.AuthEvent("logout_all", eventlog.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
		"revoked":   count,
	})
	e.emitAudit(ctx, auditLogoutAll, true, tenantID, userID, nil, map[string]string{
		"revoked": strconv.Itoa(count),
	})

	return count, nil
}

// ActiveSessions lists the user's usable refresh-token rows, newest first.
func (e *Engine) ActiveSessions(ctx context.Context, tenantID, userID string) ([]*session.RefreshToken, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	return e.sessions.ActiveForUser(ctx, tenantID, userID)
}

// enforceTokenCap revokes the oldest sessions beyond the per-user cap. Runs
// after issuance so the new token counts toward the cap. Best-effort: a
// failure here never aborts the login or rotation that triggered it.
func (e *Engine) enforceTokenCap(ctx context.Context, tenantID, userID string, now time.Time) {
	max := e.config.Session.MaxTokensPerUser
	if max < 1 {
		return
	}

	active, err := e.sessions.ActiveForUser(ctx, tenantID, userID)
	if err != nil {
		e.events.Error(err, eventlog.Fields{"op": "enforce_token_cap", "user_id": userID})
		return
	}
	if len(active) <= max {
		return
	}

	for _, row := range active[max:] {
		if err := e.sessions.RevokeByID(ctx, row.ID, now); err != nil {
			e.events.Error(err, eventlog.Fields{"op": "enforce_token_cap", "token_id": row.ID})
			continue
		}
		e.metricInc(MetricSessionEvicted)
	}
}
