package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable device fingerprint from the request's
// user agent and client IP. The fingerprint is embedded in refresh-token
// claims and stored alongside the persisted token row.
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + ip))
	return hex.EncodeToString(sum[:16])
}
