package authengine

import (
	"errors"
	"fmt"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/jwt"
	"github.com/caseflow-io/authengine/mfa"
	"github.com/caseflow-io/authengine/password"
	"github.com/caseflow-io/authengine/session"
)

// Builder assembles an [Engine]. Dependencies are supplied through With*
// calls; Build validates the whole configuration at once so a misassembled
// engine is impossible to obtain.
type Builder struct {
	config       Config
	users        UserProvider
	orgs         OrganizationProvider
	sessions     session.Store
	registration RegistrationStore
	sink         AuditSink
	events       *eventlog.Logger
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserProvider sets the user repository. Required.
func (b *Builder) WithUserProvider(p UserProvider) *Builder {
	b.users = p
	return b
}

// WithOrganizationProvider sets the tenant lookup used to project the
// organization summary onto session results. Optional.
func (b *Builder) WithOrganizationProvider(p OrganizationProvider) *Builder {
	b.orgs = p
	return b
}

// WithSessionStore sets the refresh-token store. Required.
func (b *Builder) WithSessionStore(s session.Store) *Builder {
	b.sessions = s
	return b
}

// WithRegistrationStore sets the transactional store backing
// [Engine.RegisterOrganization]. Optional; without it that operation fails
// with [ErrEngineNotReady].
func (b *Builder) WithRegistrationStore(s RegistrationStore) *Builder {
	b.registration = s
	return b
}

// WithAuditSink sets the destination for audit records. Optional; records
// are discarded without one.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithEventLogger sets the structured logger. Optional; defaults to a
// discarding logger.
func (b *Builder) WithEventLogger(l *eventlog.Logger) *Builder {
	b.events = l
	return b
}

// Build validates the configuration and dependencies and returns a ready
// Engine. The returned engine owns the audit dispatcher; callers should
// Close it on shutdown.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.users == nil {
		return nil, errors.New("build: user provider is required")
	}
	if b.sessions == nil {
		return nil, errors.New("build: session store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     b.config.JWT.AccessTTL,
		RefreshTTL:    b.config.JWT.RefreshTTL,
		SigningMethod: b.config.JWT.SigningMethod,
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
		Leeway:        b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	hasher, err := password.NewHasher(b.config.Password.Params)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	totp, err := mfa.NewVerifier(b.config.MFA)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	events := b.events
	if events == nil {
		events = eventlog.Discard()
	}

	return &Engine{
		config:       b.config,
		users:        b.users,
		orgs:         b.orgs,
		sessions:     b.sessions,
		registration: b.registration,
		hasher:       hasher,
		totp:         totp,
		jwtManager:   jwtManager,
		audit:        newAuditDispatcher(b.config.Audit, b.sink),
		metrics:      NewMetrics(b.config.Metrics),
		events:       events,
	}, nil
}
