package mfa

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/caseflow-io/authengine/internal"
)

// Config tunes TOTP validation and backup-code issuance.
type Config struct {
	Issuer           string
	Digits           int
	Period           uint
	Skew             uint
	BackupCodeCount  int
	BackupCodeLength int
}

// DefaultConfig returns the RFC 6238 profile used by the engine: 6 digits,
// 30-second step, a ±2-step validation window (~60s of clock drift), and a
// batch of ten 10-character backup codes.
func DefaultConfig() Config {
	return Config{
		Issuer:           "authengine",
		Digits:           6,
		Period:           30,
		Skew:             2,
		BackupCodeCount:  10,
		BackupCodeLength: 10,
	}
}

// Enrollment is the material handed to a user enabling MFA: the shared
// secret, the otpauth provisioning URL, and the one-time backup codes.
type Enrollment struct {
	Secret      string
	URL         string
	BackupCodes []string
}

// Verifier validates TOTP codes and issues enrollment material. Stateless
// and safe for concurrent use.
type Verifier struct {
	config Config
}

// NewVerifier applies defaults for zero fields and returns a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	def := DefaultConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	if cfg.Period == 0 {
		cfg.Period = def.Period
	}
	if cfg.BackupCodeCount == 0 {
		cfg.BackupCodeCount = def.BackupCodeCount
	}
	if cfg.BackupCodeLength == 0 {
		cfg.BackupCodeLength = def.BackupCodeLength
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	return &Verifier{config: cfg}, nil
}

// Enroll generates a fresh TOTP secret, its otpauth URL for the given
// account label, and the fixed batch of backup codes. Backup codes are
// issued exactly once; exhaustion requires re-enrollment.
func (v *Verifier) Enroll(account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.config.Issuer,
		AccountName: account,
		Period:      v.config.Period,
		Digits:      v.digits(),
	})
	if err != nil {
		return nil, err
	}

	codes, err := v.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:      key.Secret(),
		URL:         key.URL(),
		BackupCodes: codes,
	}, nil
}

// GenerateBackupCodes issues a fresh batch of backup codes without touching
// the TOTP secret. Used when a user regenerates codes mid-enrollment.
func (v *Verifier) GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, v.config.BackupCodeCount)
	for i := 0; i < v.config.BackupCodeCount; i++ {
		code, err := internal.NewBackupCode(v.config.BackupCodeLength)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// ValidateTOTP reports whether code is a valid TOTP for secret at the given
// instant, within the configured skew window. An empty secret never
// validates.
func (v *Verifier) ValidateTOTP(secret, code string, at time.Time) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    v.config.Period,
		Skew:      v.config.Skew,
		Digits:    v.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// ConsumeBackupCode looks for code among the stored backup codes. On a match
// it returns the remaining codes with exactly that entry removed and true;
// otherwise it returns the input unchanged and false. Comparison is
// constant-time per candidate.
func ConsumeBackupCode(codes []string, code string) ([]string, bool) {
	if code == "" {
		return codes, false
	}
	for i, candidate := range codes {
		if internal.ConstantTimeEqual(candidate, code) {
			remaining := make([]string, 0, len(codes)-1)
			remaining = append(remaining, codes[:i]...)
			remaining = append(remaining, codes[i+1:]...)
			return remaining, true
		}
	}
	return codes, false
}

func (v *Verifier) digits() otp.Digits {
	if v.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}
