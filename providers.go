package authengine

import (
	"context"
	"time"
)

// UserProvider is the repository contract the engine drives for user rows.
// Implementations own persistence; the engine only issues conditional
// updates, never blind overwrites. All lookups must exclude soft-deleted
// rows and return [ErrUserNotFound] (or an error wrapping it) when nothing
// matches.
type UserProvider interface {
	// FindActiveByEmail looks up a non-soft-deleted user by case-normalized
	// email.
	FindActiveByEmail(ctx context.Context, email string) (*User, error)

	// FindByID looks up a non-soft-deleted user by id.
	FindByID(ctx context.Context, id string) (*User, error)

	// Create inserts a user row, returning [ErrEmailExists] on an email
	// collision.
	Create(ctx context.Context, user *User) error

	// IncrementFailedLogins atomically adds one to the failed-login counter
	// and returns the post-increment value. The increment-then-read must be
	// atomic so concurrent forged attempts cannot lose updates.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)

	// SetLockout sets the lock-until timestamp without touching the
	// counter.
	SetLockout(ctx context.Context, id string, until time.Time) error

	// RecordLoginSuccess resets the failed counter, clears any lockout, and
	// stamps the last-login time and IP in one update.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip string) error

	// UpdatePasswordHash replaces the stored credential.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateMFA replaces the user's MFA enrollment state in one update.
	UpdateMFA(ctx context.Context, id string, enabled bool, secret string, backupCodes []string) error

	// ReplaceBackupCodes persists the remaining backup codes after one was
	// consumed.
	ReplaceBackupCodes(ctx context.Context, id string, codes []string) error

	// FindByPasswordResetToken resolves an outstanding reset challenge.
	FindByPasswordResetToken(ctx context.Context, token string) (*User, error)

	// SetPasswordReset stores a reset token and its expiry.
	SetPasswordReset(ctx context.Context, id, token string, expires time.Time) error

	// ClearPasswordReset removes an outstanding reset challenge.
	ClearPasswordReset(ctx context.Context, id string) error

	// FindByEmailVerificationToken resolves a verification challenge.
	FindByEmailVerificationToken(ctx context.Context, token string) (*User, error)

	// MarkEmailVerified flips the verification flag, clears the token, and
	// promotes a pending account to active.
	MarkEmailVerified(ctx context.Context, id string) error
}

// OrganizationProvider resolves tenant rows for session projections.
// Optional: without it, session results omit the organization summary.
type OrganizationProvider interface {
	FindByID(ctx context.Context, id string) (*Organization, error)
}

// RegistrationTx is the write surface available inside the registration
// transaction. Every call either takes effect atomically with the rest of
// the transaction or not at all.
type RegistrationTx interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	CreateSubscription(ctx context.Context, sub *Subscription) error
	CreateUser(ctx context.Context, user *User) error
	UpsertOnboardingStep(ctx context.Context, step *OnboardingStep) error
}

// RegistrationStore opens the tenant-provisioning transaction. InTx must
// roll back every write when fn returns an error and must never leave a
// partially provisioned tenant observable.
type RegistrationStore interface {
	InTx(ctx context.Context, fn func(tx RegistrationTx) error) error
}
