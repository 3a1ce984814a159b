package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound is returned when no row exists for the token hash.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenRevoked is returned when the row exists but was already
	// revoked. On the rotation path this is the replay indicator.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrTokenExpired is returned when the row exists, is not revoked, but
	// its expiry has passed.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrStoreUnavailable wraps backend connectivity failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store persists refresh tokens. Implementations must make Rotate a
// compare-and-swap: of two concurrent rotations of the same token, exactly
// one observes the usable row and revokes it; the other gets
// [ErrTokenRevoked].
type Store interface {
	// Create inserts a new refresh-token row.
	Create(ctx context.Context, token *RefreshToken) error

	// Find returns the row for the token hash, revoked or not.
	Find(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate atomically marks the row revoked iff it is currently usable
	// and returns the row as it was before revocation. A missing row yields
	// ErrTokenNotFound, an already-revoked row ErrTokenRevoked, an expired
	// row ErrTokenExpired.
	Rotate(ctx context.Context, tokenHash string, now time.Time) (*RefreshToken, error)

	// Revoke marks the row revoked. Revoking a missing, expired, or
	// already-revoked token is not an error.
	Revoke(ctx context.Context, tokenHash string, now time.Time) error

	// RevokeAllForUser revokes every usable row of the user and returns how
	// many were revoked.
	RevokeAllForUser(ctx context.Context, tenantID, userID string, now time.Time) (int, error)

	// ActiveForUser lists the user's usable rows ordered newest-first.
	ActiveForUser(ctx context.Context, tenantID, userID string) ([]*RefreshToken, error)

	// RevokeByID revokes a single row by its ID; idempotent. Used by cap
	// enforcement after a login pushes a user over the concurrent-token
	// limit.
	RevokeByID(ctx context.Context, id string, now time.Time) error
}
