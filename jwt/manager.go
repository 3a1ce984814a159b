package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is the single error surfaced for any verification failure.
// Signature, expiry, shape, and type-confusion failures all collapse into it
// so callers cannot distinguish which check rejected the token.
var ErrTokenInvalid = errors.New("invalid or expired token")

// SigningMethod selects the JWT signing algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Config carries the issuer's signing material and lifetimes.
//
// Config instances are set once at construction and treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID    string `json:"uid"`
	TenantID  string `json:"tid,omitempty"`
	Role      string `json:"role,omitempty"`
	Plan      string `json:"plan,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. TokenID matches
// the persisted refresh-token row; Fingerprint binds the token to the device
// it was issued to.
type RefreshClaims struct {
	UserID      string `json:"uid"`
	TenantID    string `json:"tid,omitempty"`
	TokenID     string `json:"rtid"`
	Fingerprint string `json:"fp,omitempty"`
	TokenType   string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager mints and verifies signed access and refresh tokens. It is
// stateless besides its signing material and is safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a token Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess signs an access token for the given claims. A fresh jti,
// issued-at, and expiry derived from AccessTTL are stamped on; everything
// else in claims is carried through verbatim.
func (m *Manager) IssueAccess(claims AccessClaims) (string, error) {
	now := time.Now()
	claims.TokenType = typeAccess
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
	}
	return m.sign(jwt.NewWithClaims(m.method(), claims))
}

// IssueRefresh signs a refresh token. TokenID must be the id of the persisted
// refresh-token row the caller is about to create.
func (m *Manager) IssueRefresh(claims RefreshClaims) (string, error) {
	if claims.TokenID == "" {
		return "", errors.New("refresh claims require a token id")
	}
	now := time.Now()
	claims.TokenType = typeRefresh
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
	}
	return m.sign(jwt.NewWithClaims(m.method(), claims))
}

// VerifyAccess checks signature and expiry and returns the access claims.
// Any failure, including presenting a refresh token here, yields
// [ErrTokenInvalid].
func (m *Manager) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != typeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry and returns the refresh claims.
func (m *Manager) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != typeRefresh || claims.TokenID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeUnverified parses a token without checking its signature or expiry
// and returns the registered claims, or nil if the token is malformed.
// Introspection only; the result must never be used to authorize an action.
func (m *Manager) DecodeUnverified(tokenStr string) *jwt.RegisteredClaims {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}
	return claims
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func (m *Manager) sign(token *jwt.Token) (string, error) {
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key size")
	}
	return ed25519.PrivateKey(key), nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	return ed25519.PublicKey(key), nil
}
