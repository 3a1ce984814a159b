package session

import "time"

// DeviceInfo records where a refresh token was issued. It is preserved
// verbatim across rotations so a session chain stays attributable to the
// device that opened it.
type DeviceInfo struct {
	UserAgent   string `json:"user_agent,omitempty"`
	IP          string `json:"ip,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// RefreshToken is one persisted session credential. A token is usable iff it
// has not been revoked and has not expired. Rotation revokes the current row
// and inserts a successor whose ReplacedBy references the revoked row's ID,
// forming a session chain (every row points at most one predecessor, never a
// cycle).
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TenantID  string     `json:"tenant_id"`
	TokenHash string     `json:"token_hash"`
	Device    DeviceInfo `json:"device"`
	IssuedAt  time.Time  `json:"-"`
	ExpiresAt time.Time  `json:"-"`
	RevokedAt *time.Time `json:"-"`
	// ReplacedBy holds the ID of the predecessor row this token superseded,
	// or "" for the first token of a chain.
	ReplacedBy string `json:"replaced_by,omitempty"`
}

// Usable reports whether the token can still mint access tokens at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
