package authengine

import (
	"context"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/internal"
	"github.com/caseflow-io/authengine/jwt"
	"github.com/caseflow-io/authengine/mfa"
	"github.com/caseflow-io/authengine/password"
	"github.com/caseflow-io/authengine/session"
)

// Engine is the authentication core. It owns no persistence of its own;
// providers and the session store are injected through the [Builder], and
// every operation takes a context so callers control cancellation. An Engine
// is safe for concurrent use once built.
type Engine struct {
	config       Config
	users        UserProvider
	orgs         OrganizationProvider
	sessions     session.Store
	registration RegistrationStore
	hasher       *password.Hasher
	totp         *mfa.Verifier
	jwtManager   *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
	events       *eventlog.Logger
}

// Close flushes the audit buffer and stops the dispatcher. Safe to call more
// than once and on a nil receiver.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit records were shed because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters. Always non-nil maps.
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

// VerifyAccess checks an access token's signature, expiry, and type claim
// and returns the identity it asserts. No storage is consulted; a token
// stays valid until it expires even if the session that issued it was
// revoked.
func (e *Engine) VerifyAccess(_ context.Context, token string) (*Identity, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.jwtManager.VerifyAccess(token)
	e.metrics.Observe(MetricVerifyAccessLatency, time.Since(start))
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Plan:     Plan(claims.Plan),
		Email:    claims.Email,
	}, nil
}

// deviceFromContext reads the client IP and user agent the caller attached
// via [WithClientIP] and [WithUserAgent].
func deviceFromContext(ctx context.Context) session.DeviceInfo {
	return newDeviceInfo(userAgentFromContext(ctx), clientIPFromContext(ctx))
}

func newDeviceInfo(userAgent, ip string) session.DeviceInfo {
	return session.DeviceInfo{
		UserAgent:   userAgent,
		IP:          ip,
		Fingerprint: internal.Fingerprint(userAgent, ip),
	}
}
