package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

const verificationTokenBytes = 32

// NewVerificationToken returns a random token suitable for email-verification
// and password-reset challenges.
func NewVerificationToken() (string, error) {
	raw := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the sha256 hex digest of a token value. Stores index
// refresh tokens by digest so a raw dump of the store does not yield usable
// credentials.
func HashToken(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings without leaking the mismatch position.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewBackupCode returns a random backup code of the requested length drawn
// from an unambiguous alphabet (no 0/O, 1/I/L).
func NewBackupCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid backup code length")
	}

	const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
