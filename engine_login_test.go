package authengine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	users := newMockUserProvider(seedUser(t, "correct horse battery"))
	te := newTestEngine(t, testConfig(), users)

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	result, err := te.engine.Login(ctx, LoginRequest{
		Email:    "Alice@Example.com", // case-normalized lookup
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens on success")
	}
	if result.ExpiresIn != 900 {
		t.Fatalf("ExpiresIn = %d, want 900", result.ExpiresIn)
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("unexpected profile email %q", result.User.Email)
	}

	stored := te.users.snapshot(t, "u1")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatal("success must reset failure bookkeeping")
	}
	if stored.LastLoginAt == nil || stored.LastLoginIP != "203.0.113.7" {
		t.Fatal("success must stamp last-login time and IP")
	}
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	users := newMockUserProvider(seedUser(t, "correct horse battery"))
	te := newTestEngine(t, testConfig(), users)

	_, err := te.engine.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "nope",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Unknown email must be indistinguishable from a wrong password.
	_, err = te.engine.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "nope",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	cfg := testConfig()
	users := newMockUserProvider(seedUser(t, "correct horse battery"))
	te := newTestEngine(t, cfg, users)
	ctx := context.Background()

	// Every failure up to and including the threshold reports generic
	// invalid credentials; the lock is only observable on the next attempt.
	for i := 0; i < cfg.Lockout.MaxAttempts; i++ {
		_, err := te.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	stored := te.users.snapshot(t, "u1")
	if stored.FailedLoginAttempts != cfg.Lockout.MaxAttempts {
		t.Fatalf("counter = %d, want %d", stored.FailedLoginAttempts, cfg.Lockout.MaxAttempts)
	}
	if stored.LockedUntil == nil || !stored.LockedUntil.After(time.Now()) {
		t.Fatal("threshold must set a future lock-until")
	}

	// Even the correct password is rejected while locked.
	_, err := te.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	if events := te.securityEvents("account_locked"); len(events) != 1 {
		t.Fatalf("expected one account_locked event, got %d", len(events))
	}
}

func TestLoginAfterLockExpiryResetsCounter(t *testing.T) {
	user := seedUser(t, "correct horse battery")
	user.FailedLoginAttempts = 5
	past := time.Now().Add(-time.Minute)
	user.LockedUntil = &past

	users := newMockUserProvider(user)
	te := newTestEngine(t, testConfig(), users)

	result, err := te.engine.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected a session")
	}

	stored := te.users.snapshot(t, "u1")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatal("successful login must clear the counter and lock")
	}
}

func TestLoginSuspendedAndDeleted(t *testing.T) {
	suspended := seedUser(t, "pw-is-long-enough")
	suspended.Status = StatusSuspended

	deleted := seedUser(t, "pw-is-long-enough")
	deleted.ID = "u2"
	deleted.Email = "bob@example.com"
	deleted.Status = StatusDeleted

	users := newMockUserProvider(suspended, deleted)
	te := newTestEngine(t, testConfig(), users)
	ctx := context.Background()

	_, err := te.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "pw-is-long-enough"})
	if !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}

	_, err = te.engine.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "pw-is-long-enough"})
	if !errors.Is(err, ErrAccountDeleted) {
		t.Fatalf("expected ErrAccountDeleted, got %v", err)
	}
}

func TestLoginMFARequiredIssuesNoSession(t *testing.T) {
	user := seedUser(t, "correct horse battery")
	user.MFAEnabled = true
	user.MFASecret = "JBSWY3DPEHPK3PXP"

	users := newMockUserProvider(user)
	te := newTestEngine(t, testConfig(), users)

	_, err := te.engine.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected ErrMFARequired, got %v", err)
	}

	active, err := te.sessions.ActiveForUser(context.Background(), "t1", "u1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("MFA challenge must not create a session, found %d", len(active))
	}
}

func TestLoginBadMFACode(t *testing.T) {
	user := seedUser(t, "correct horse battery")
	user.MFAEnabled = true
	user.MFASecret = "JBSWY3DPEHPK3PXP"
	user.MFABackupCodes = []string{"AAAA2222", "BBBB3333"}

	users := newMockUserProvider(user)
	te := newTestEngine(t, testConfig(), users)

	_, err := te.engine.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		MFACode:  "000000",
	})
	if !errors.Is(err, ErrMFAInvalid) {
		t.Fatalf("expected ErrMFAInvalid, got %v", err)
	}
}

func TestLoginBackupCodeSingleUse(t *testing.T) {
	user := seedUser(t, "correct horse battery")
	user.MFAEnabled = true
	user.MFASecret = "JBSWY3DPEHPK3PXP"
	user.MFABackupCodes = []string{"AAAA2222", "BBBB3333"}

	users := newMockUserProvider(user)
	te := newTestEngine(t, testConfig(), users)
	ctx := context.Background()

	result, err := te.engine.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		MFACode:  "AAAA2222",
	})
	if err != nil {
		t.Fatalf("backup-code login: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected a session")
	}

	stored := te.users.snapshot(t, "u1")
	if len(stored.MFABackupCodes) != 1 || stored.MFABackupCodes[0] != "BBBB3333" {
		t.Fatalf("backup list after consumption = %v", stored.MFABackupCodes)
	}

	events := te.securityEvents("backup_code_used")
	if len(events) != 1 {
		t.Fatalf("expected one backup_code_used event, got %d", len(events))
	}
	if remaining, ok := events[0].Data["remaining"].(int); !ok || remaining != 1 {
		t.Fatalf("event remaining = %v, want 1", events[0].Data["remaining"])
	}

	// Replaying the consumed code must fail.
	_, err = te.engine.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		MFACode:  "AAAA2222",
	})
	if !errors.Is(err, ErrMFAInvalid) {
		t.Fatalf("expected ErrMFAInvalid on reuse, got %v", err)
	}
}

func TestLoginResultOmitsSecrets(t *testing.T) {
	user := seedUser(t, "correct horse battery")
	user.MFAEnabled = false
	user.MFASecret = "JBSWY3DPEHPK3PXP"
	user.MFABackupCodes = []string{"AAAA2222"}

	users := newMockUserProvider(user)
	te := newTestEngine(t, testConfig(), users)

	result, err := te.engine.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// UserProfile has no hash/secret fields at all; what it does carry must
	// match the record.
	if result.User.ID != "u1" || result.User.TenantID != "t1" || result.User.Role != "member" {
		t.Fatalf("unexpected profile %+v", result.User)
	}
}
