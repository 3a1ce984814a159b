package authengine

import "errors"

var (
	// ErrInvalidCredentials is returned for every credential failure:
	// unknown email, wrong password, or a lockout increment. The caller can
	// never tell which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended is returned when the account status is suspended.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountDeleted is returned when the account status is deleted.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrAccountLocked is returned while a lockout window is in effect.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrMFARequired signals that MFA is enabled and no code was supplied.
	// Not a hard failure; the caller should re-prompt with a code.
	ErrMFARequired = errors.New("mfa code required")
	// ErrMFAInvalid is returned when neither the TOTP check nor a backup
	// code accepted the supplied code.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFANotEnrolled is returned when an MFA operation needs an existing
	// enrollment and none is present.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrWeakPassword is returned when a password fails the strength policy
	// before any write happens.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrEmailExists is returned when registration collides with an
	// existing email.
	ErrEmailExists = errors.New("email already registered")
	// ErrTokenInvalid is returned for malformed, unsigned, or unknown
	// tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when a refresh token was already revoked.
	// On the rotation path this indicates possible token replay.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenExpired is returned when a refresh token has passed its
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserNotFound is returned when an operation references a missing or
	// soft-deleted user.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordReuse rejects a password change to the current password.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrResetInvalid is returned for an unknown or expired password-reset
	// token.
	ErrResetInvalid = errors.New("password reset token invalid or expired")
	// ErrVerificationInvalid is returned for an unknown email-verification
	// token.
	ErrVerificationInvalid = errors.New("email verification token invalid")
	// ErrEngineNotReady guards calls on a partially constructed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
