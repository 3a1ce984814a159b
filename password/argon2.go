package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Params tunes the Argon2id cost. Zero values are replaced by the defaults
// from [DefaultParams] at construction.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the recommended interactive-login cost profile.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords with Argon2id. Hashes are stored in
// PHC string format, which carries the cost parameters and the per-password
// random salt inside the encoded value.
type Hasher struct {
	params Params
}

// NewHasher validates the cost parameters and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p == (Params{}) {
		p = DefaultParams()
	}
	if p.MemoryKB < 8*1024 || p.Time < 1 || p.Parallelism < 1 ||
		p.SaltLength < 16 || p.KeyLength < 16 {
		return nil, errors.New("argon2 parameters below safe minimums")
	}
	return &Hasher{params: p}, nil
}

// Hash derives a PHC-encoded Argon2id hash with a fresh random salt.
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches the encoded hash. The comparison is
// constant-time over the derived key.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	memory, time, parallelism, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plain), salt, time, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether the encoded hash was produced with weaker cost
// parameters than the hasher is configured with.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	memory, time, parallelism, _, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return memory < h.params.MemoryKB ||
		time < h.params.Time ||
		parallelism < h.params.Parallelism ||
		uint32(len(key)) < h.params.KeyLength, nil
}

func decode(encoded string) (memory, time uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &p); err != nil || p == 0 || p > 255 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	parallelism = uint8(p)

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	return memory, time, parallelism, salt, key, nil
}
