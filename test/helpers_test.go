//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/caseflow-io/authengine"
	"github.com/caseflow-io/authengine/password"
	"github.com/caseflow-io/authengine/session"
)

const (
	seedEmail    = "alice@example.com"
	seedPassword = "Str0ng!passphrase"
)

func newIntegrationStore(t *testing.T) (*session.RedisStore, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewRedisStore(rdb, "it")

	return store, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// newIntegrationEngine stands up a full engine over miniredis with a seeded
// active user.
func newIntegrationEngine(t *testing.T) *authengine.Engine {
	t.Helper()

	store, cleanup := newIntegrationStore(t)
	t.Cleanup(cleanup)

	cfg := authengine.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Params = password.Params{
		MemoryKB:    8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(cfg.Password.Params)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	provider := newMemProvider(&authengine.User{
		ID:            "u1",
		TenantID:      "t1",
		Email:         seedEmail,
		Name:          "Alice",
		PasswordHash:  hash,
		Role:          "member",
		Status:        authengine.StatusActive,
		EmailVerified: true,
		CreatedAt:     time.Now().UTC(),
	})

	engine, err := authengine.New().
		WithConfig(cfg).
		WithUserProvider(provider).
		WithSessionStore(store).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func hashByte(b byte) string {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = "0123456789abcdef"[int(b)%16]
	}
	return string(buf)
}

func makeToken(id, hash string, ttl time.Duration) *session.RefreshToken {
	now := time.Now().UTC()
	return &session.RefreshToken{
		ID:        id,
		TenantID:  "t1",
		UserID:    "u1",
		TokenHash: hash,
		Device: session.DeviceInfo{
			UserAgent: "integration",
			IP:        "127.0.0.1",
		},
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// memProvider is a mutex-guarded in-memory UserProvider.
type memProvider struct {
	mu    sync.Mutex
	users map[string]*authengine.User
}

func newMemProvider(users ...*authengine.User) *memProvider {
	p := &memProvider{users: make(map[string]*authengine.User)}
	for _, u := range users {
		p.users[u.ID] = u
	}
	return p
}

func (p *memProvider) copyOf(u *authengine.User) *authengine.User {
	cp := *u
	cp.MFABackupCodes = append([]string(nil), u.MFABackupCodes...)
	return &cp
}

func (p *memProvider) FindActiveByEmail(_ context.Context, email string) (*authengine.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == email && u.DeletedAt == nil {
			return p.copyOf(u), nil
		}
	}
	return nil, authengine.ErrUserNotFound
}

func (p *memProvider) FindByID(_ context.Context, id string) (*authengine.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, authengine.ErrUserNotFound
	}
	return p.copyOf(u), nil
}

func (p *memProvider) Create(_ context.Context, user *authengine.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == user.Email {
			return authengine.ErrEmailExists
		}
	}
	p.users[user.ID] = p.copyOf(user)
	return nil
}

func (p *memProvider) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		return 0, authengine.ErrUserNotFound
	}
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (p *memProvider) SetLockout(_ context.Context, id string, until time.Time) error {
	return p.update(id, func(u *authengine.User) { u.LockedUntil = &until })
}

func (p *memProvider) RecordLoginSuccess(_ context.Context, id string, at time.Time, ip string) error {
	return p.update(id, func(u *authengine.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &at
		u.LastLoginIP = ip
	})
}

func (p *memProvider) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return p.update(id, func(u *authengine.User) { u.PasswordHash = hash })
}

func (p *memProvider) UpdateMFA(_ context.Context, id string, enabled bool, secret string, codes []string) error {
	return p.update(id, func(u *authengine.User) {
		u.MFAEnabled = enabled
		u.MFASecret = secret
		u.MFABackupCodes = codes
	})
}

func (p *memProvider) ReplaceBackupCodes(_ context.Context, id string, codes []string) error {
	return p.update(id, func(u *authengine.User) { u.MFABackupCodes = codes })
}

func (p *memProvider) FindByPasswordResetToken(_ context.Context, token string) (*authengine.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.PasswordResetToken == token && u.DeletedAt == nil {
			return p.copyOf(u), nil
		}
	}
	return nil, authengine.ErrUserNotFound
}

func (p *memProvider) SetPasswordReset(_ context.Context, id, token string, expires time.Time) error {
	return p.update(id, func(u *authengine.User) {
		u.PasswordResetToken = token
		u.PasswordResetExpires = &expires
	})
}

func (p *memProvider) ClearPasswordReset(_ context.Context, id string) error {
	return p.update(id, func(u *authengine.User) {
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
	})
}

func (p *memProvider) FindByEmailVerificationToken(_ context.Context, token string) (*authengine.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.EmailVerificationToken == token && u.DeletedAt == nil {
			return p.copyOf(u), nil
		}
	}
	return nil, authengine.ErrUserNotFound
}

func (p *memProvider) MarkEmailVerified(_ context.Context, id string) error {
	return p.update(id, func(u *authengine.User) {
		u.EmailVerified = true
		u.EmailVerificationToken = ""
		if u.Status == authengine.StatusPending {
			u.Status = authengine.StatusActive
		}
	})
}

func (p *memProvider) update(id string, fn func(*authengine.User)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		return authengine.ErrUserNotFound
	}
	fn(u)
	return nil
}
