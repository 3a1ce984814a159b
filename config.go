package authengine

import (
	"errors"
	"time"

	"github.com/caseflow-io/authengine/jwt"
	"github.com/caseflow-io/authengine/mfa"
	"github.com/caseflow-io/authengine/password"
	"github.com/caseflow-io/authengine/session"
)

// Config is the full engine configuration. Set once before Build and treated
// as immutable afterwards.
type Config struct {
	JWT          JWTConfig
	Lockout      LockoutConfig
	Session      SessionConfig
	MFA          mfa.Config
	Password     PasswordConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// JWTConfig carries signing material and token lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod jwt.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// LockoutConfig tunes the failed-login lockout policy.
type LockoutConfig struct {
	// MaxAttempts is the failed-attempt threshold at which the account
	// locks.
	MaxAttempts int
	// Duration is how long a lockout lasts once triggered.
	Duration time.Duration
}

// SessionConfig tunes persisted refresh-token behavior.
type SessionConfig struct {
	// MaxTokensPerUser caps concurrent non-revoked refresh tokens per user.
	// The cap is enforced after each new issuance; the oldest excess tokens
	// are revoked.
	MaxTokensPerUser int
	// RedisPrefix namespaces keys when the Redis store is used.
	RedisPrefix string
}

// PasswordConfig carries hashing cost, the organization-registration
// strength policy, and the lighter minimum applied on the simple
// registration path.
type PasswordConfig struct {
	Params Params
	Policy password.Policy
	// SimpleMinLength is the only strength requirement the simple register
	// path applies.
	SimpleMinLength int
	// UpgradeOnLogin rehashes stored credentials that were produced with
	// weaker cost parameters. Best-effort; never blocks a login.
	UpgradeOnLogin bool
}

// Params aliases the Argon2id cost parameters.
type Params = password.Params

// RegistrationConfig tunes tenant provisioning.
type RegistrationConfig struct {
	DefaultPlan     Plan
	TrialDays       int
	PaymentProvider string
	OwnerRole       string
	DefaultRole     string
	// FallbackDevice is recorded on the session auto-issued by the simple
	// register path when the context carries no client IP or user agent.
	FallbackDevice session.DeviceInfo
}

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds audit records instead of blocking the primary flow
	// when the buffer is full. Dropped records are counted.
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production baseline: 15-minute access tokens,
// 7-day refresh tokens, lockout after 5 failures for 30 minutes, a 5-token
// session cap, and a 14-day Basic trial.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: jwt.MethodEd25519,
			Issuer:        "authengine",
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    30 * time.Minute,
		},
		Session: SessionConfig{
			MaxTokensPerUser: 5,
			RedisPrefix:      "ae",
		},
		MFA: mfa.DefaultConfig(),
		Password: PasswordConfig{
			Params:          password.DefaultParams(),
			Policy:          password.DefaultPolicy(),
			SimpleMinLength: 8,
			UpgradeOnLogin:  true,
		},
		Registration: RegistrationConfig{
			DefaultPlan:     PlanBasic,
			TrialDays:       14,
			PaymentProvider: "stripe",
			OwnerRole:       "owner",
			DefaultRole:     "member",
			FallbackDevice: session.DeviceInfo{
				UserAgent: "registration",
				IP:        "0.0.0.0",
			},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("config: access TTL must be shorter than refresh TTL")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("config: lockout threshold must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.Session.MaxTokensPerUser < 1 {
		return errors.New("config: session cap must be at least 1")
	}
	if c.Password.SimpleMinLength < 8 {
		return errors.New("config: simple registration minimum length below 8")
	}
	if c.Registration.TrialDays < 0 {
		return errors.New("config: negative trial window")
	}
	if c.Registration.OwnerRole == "" || c.Registration.DefaultRole == "" {
		return errors.New("config: registration roles must be set")
	}
	return nil
}
