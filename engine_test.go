package authengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/jwt"
	"github.com/caseflow-io/authengine/password"
	"github.com/caseflow-io/authengine/session"
)

// fastParams keeps Argon2id cheap enough for the test suite.
func fastParams() password.Params {
	return password.Params{
		MemoryKB:    8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = jwt.MethodHS256
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Params = fastParams()
	cfg.Audit.Enabled = false
	return cfg
}

// mockUserProvider is an in-memory UserProvider with mutex-guarded state so
// the atomicity contract of IncrementFailedLogins holds under concurrency.
type mockUserProvider struct {
	mu    sync.Mutex
	users map[string]*User // keyed by id
}

func newMockUserProvider(users ...*User) *mockUserProvider {
	p := &mockUserProvider{users: make(map[string]*User)}
	for _, u := range users {
		p.users[u.ID] = u
	}
	return p
}

func (p *mockUserProvider) get(id string) (*User, error) {
	u, ok := p.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func copyUser(u *User) *User {
	cp := *u
	cp.MFABackupCodes = append([]string(nil), u.MFABackupCodes...)
	return &cp
}

func (p *mockUserProvider) FindActiveByEmail(_ context.Context, email string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == email && u.DeletedAt == nil {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) FindByID(_ context.Context, id string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

func (p *mockUserProvider) Create(_ context.Context, user *User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == user.Email {
			return ErrEmailExists
		}
	}
	p.users[user.ID] = copyUser(user)
	return nil
}

func (p *mockUserProvider) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return 0, err
	}
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (p *mockUserProvider) SetLockout(_ context.Context, id string, until time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.LockedUntil = &until
	return nil
}

func (p *mockUserProvider) RecordLoginSuccess(_ context.Context, id string, at time.Time, ip string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	u.LastLoginIP = ip
	return nil
}

func (p *mockUserProvider) UpdatePasswordHash(_ context.Context, id, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (p *mockUserProvider) UpdateMFA(_ context.Context, id string, enabled bool, secret string, backupCodes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.MFAEnabled = enabled
	u.MFASecret = secret
	u.MFABackupCodes = append([]string(nil), backupCodes...)
	return nil
}

func (p *mockUserProvider) ReplaceBackupCodes(_ context.Context, id string, codes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.MFABackupCodes = append([]string(nil), codes...)
	return nil
}

func (p *mockUserProvider) FindByPasswordResetToken(_ context.Context, token string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.PasswordResetToken != "" && u.PasswordResetToken == token && u.DeletedAt == nil {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) SetPasswordReset(_ context.Context, id, token string, expires time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.PasswordResetToken = token
	u.PasswordResetExpires = &expires
	return nil
}

func (p *mockUserProvider) ClearPasswordReset(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (p *mockUserProvider) FindByEmailVerificationToken(_ context.Context, token string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.EmailVerificationToken != "" && u.EmailVerificationToken == token && u.DeletedAt == nil {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) MarkEmailVerified(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.get(id)
	if err != nil {
		return err
	}
	u.EmailVerified = true
	u.EmailVerificationToken = ""
	if u.Status == StatusPending {
		u.Status = StatusActive
	}
	return nil
}

// snapshot reads a user's current stored state for assertions.
func (p *mockUserProvider) snapshot(t *testing.T, id string) *User {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		t.Fatalf("user %s not in provider", id)
	}
	return copyUser(u)
}

// memorySessionStore implements session.Store over a map. Rows are kept in
// insertion order so ActiveForUser is deterministically newest-first even
// when two logins land on the same clock tick.
type memorySessionStore struct {
	mu     sync.Mutex
	byHash map[string]*session.RefreshToken
	order  []*session.RefreshToken
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{byHash: make(map[string]*session.RefreshToken)}
}

func (s *memorySessionStore) Create(_ context.Context, token *session.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.byHash[token.TokenHash] = &cp
	s.order = append(s.order, &cp)
	return nil
}

func (s *memorySessionStore) Find(_ context.Context, tokenHash string) (*session.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byHash[tokenHash]
	if !ok {
		return nil, session.ErrTokenNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memorySessionStore) Rotate(_ context.Context, tokenHash string, now time.Time) (*session.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byHash[tokenHash]
	if !ok {
		return nil, session.ErrTokenNotFound
	}
	if row.RevokedAt != nil {
		return nil, session.ErrTokenRevoked
	}
	if !row.ExpiresAt.After(now) {
		return nil, session.ErrTokenExpired
	}
	cp := *row
	row.RevokedAt = &now
	return &cp, nil
}

func (s *memorySessionStore) Revoke(_ context.Context, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byHash[tokenHash]
	if ok && row.RevokedAt == nil {
		row.RevokedAt = &now
	}
	return nil
}

func (s *memorySessionStore) RevokeAllForUser(_ context.Context, tenantID, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.order {
		if row.TenantID == tenantID && row.UserID == userID && row.Usable(now) {
			row.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (s *memorySessionStore) ActiveForUser(_ context.Context, tenantID, userID string) ([]*session.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var active []*session.RefreshToken
	for i := len(s.order) - 1; i >= 0; i-- {
		row := s.order[i]
		if row.TenantID == tenantID && row.UserID == userID && row.Usable(now) {
			cp := *row
			active = append(active, &cp)
		}
	}
	return active, nil
}

func (s *memorySessionStore) RevokeByID(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.order {
		if row.ID == id && row.RevokedAt == nil {
			row.RevokedAt = &now
		}
	}
	return nil
}

// seedUser hashes the password with test-speed parameters and returns an
// active user record.
func seedUser(t *testing.T, plain string) *User {
	t.Helper()
	hasher, err := password.NewHasher(fastParams())
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &User{
		ID:           "u1",
		TenantID:     "t1",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: hash,
		Role:         "member",
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
}

type testEngine struct {
	engine   *Engine
	users    *mockUserProvider
	sessions *memorySessionStore
	logHook  *logrustest.Hook
}

func newTestEngine(t *testing.T, cfg Config, users *mockUserProvider, opts ...func(*Builder)) *testEngine {
	t.Helper()

	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	sessions := newMemorySessionStore()
	b := New().
		WithConfig(cfg).
		WithUserProvider(users).
		WithSessionStore(sessions).
		WithEventLogger(eventlog.New(logger))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{engine: engine, users: users, sessions: sessions, logHook: hook}
}

// securityEvents filters captured log entries down to security events of the
// given kind.
func (te *testEngine) securityEvents(kind string) []*logrus.Entry {
	var out []*logrus.Entry
	for _, entry := range te.logHook.AllEntries() {
		if entry.Data["event"] == kind {
			out = append(out, entry)
		}
	}
	return out
}

func distinctDeviceCtx(i int) context.Context {
	ctx := WithClientIP(context.Background(), fmt.Sprintf("10.0.0.%d", i))
	return WithUserAgent(ctx, fmt.Sprintf("device-%d", i))
}
