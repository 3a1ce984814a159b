//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"

	"github.com/caseflow-io/authengine"
)

func TestLoginRefreshLogoutOverRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	first, err := engine.Login(ctx, authengine.LoginRequest{
		Email:    seedEmail,
		Password: seedPassword,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := engine.VerifyAccess(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if id.UserID != "u1" || id.TenantID != "t1" {
		t.Fatalf("identity = %+v", id)
	}

	second, err := engine.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}

	// The predecessor is spent; rotating it again is a replay.
	if _, err := engine.Rotate(ctx, first.RefreshToken); !errors.Is(err, authengine.ErrTokenRevoked) {
		t.Fatalf("replay err = %v, want ErrTokenRevoked", err)
	}

	if err := engine.Logout(ctx, second.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := engine.Rotate(ctx, second.RefreshToken); !errors.Is(err, authengine.ErrTokenRevoked) {
		t.Fatalf("rotate after logout err = %v, want ErrTokenRevoked", err)
	}
}

func TestTokenCapOverRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	max := authengine.DefaultConfig().Session.MaxTokensPerUser
	for i := 0; i < max+2; i++ {
		if _, err := engine.Login(ctx, authengine.LoginRequest{
			Email:    seedEmail,
			Password: seedPassword,
		}); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}

	active, err := engine.ActiveSessions(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(active) != max {
		t.Fatalf("active = %d, want %d", len(active), max)
	}
}

func TestLogoutAllOverRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	for i := 0; i < 3; i++ {
		if _, err := engine.Login(ctx, authengine.LoginRequest{
			Email:    seedEmail,
			Password: seedPassword,
		}); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}

	n, err := engine.LogoutAll(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked = %d, want 3", n)
	}

	active, err := engine.ActiveSessions(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active after logout all = %d", len(active))
	}
}
