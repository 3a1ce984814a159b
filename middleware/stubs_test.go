package middleware

import (
	"context"
	"time"

	"github.com/caseflow-io/authengine"
	"github.com/caseflow-io/authengine/session"
)

func withIdentity(ctx context.Context, id *authengine.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// stubUsers satisfies the provider contract for guard tests that never hit
// the user path.
type stubUsers struct{}

func (stubUsers) FindActiveByEmail(context.Context, string) (*authengine.User, error) {
	return nil, authengine.ErrUserNotFound
}
func (stubUsers) FindByID(context.Context, string) (*authengine.User, error) {
	return nil, authengine.ErrUserNotFound
}
func (stubUsers) Create(context.Context, *authengine.User) error { return nil }
func (stubUsers) IncrementFailedLogins(context.Context, string) (int, error) {
	return 0, authengine.ErrUserNotFound
}
func (stubUsers) SetLockout(context.Context, string, time.Time) error               { return nil }
func (stubUsers) RecordLoginSuccess(context.Context, string, time.Time, string) error { return nil }
func (stubUsers) UpdatePasswordHash(context.Context, string, string) error          { return nil }
func (stubUsers) UpdateMFA(context.Context, string, bool, string, []string) error   { return nil }
func (stubUsers) ReplaceBackupCodes(context.Context, string, []string) error        { return nil }
func (stubUsers) FindByPasswordResetToken(context.Context, string) (*authengine.User, error) {
	return nil, authengine.ErrUserNotFound
}
func (stubUsers) SetPasswordReset(context.Context, string, string, time.Time) error { return nil }
func (stubUsers) ClearPasswordReset(context.Context, string) error                  { return nil }
func (stubUsers) FindByEmailVerificationToken(context.Context, string) (*authengine.User, error) {
	return nil, authengine.ErrUserNotFound
}
func (stubUsers) MarkEmailVerified(context.Context, string) error { return nil }

type stubSessions struct{}

func (stubSessions) Create(context.Context, *session.RefreshToken) error { return nil }
func (stubSessions) Find(context.Context, string) (*session.RefreshToken, error) {
	return nil, session.ErrTokenNotFound
}
func (stubSessions) Rotate(context.Context, string, time.Time) (*session.RefreshToken, error) {
	return nil, session.ErrTokenNotFound
}
func (stubSessions) Revoke(context.Context, string, time.Time) error { return nil }
func (stubSessions) RevokeAllForUser(context.Context, string, string, time.Time) (int, error) {
	return 0, nil
}
func (stubSessions) ActiveForUser(context.Context, string, string) ([]*session.RefreshToken, error) {
	return nil, nil
}
func (stubSessions) RevokeByID(context.Context, string, time.Time) error { return nil }
