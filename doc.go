// Package authengine is an embeddable authentication and session-lifecycle
// engine: password verification with time-boxed lockout, TOTP and backup-code
// MFA, short-lived signed access tokens paired with rotating persisted
// refresh tokens, and an atomic tenant-provisioning transaction.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authengine is the public surface: [Engine], [Builder], [Config], the error
// sentinels, and value types (SessionResult, Identity, AuditRecord). The
// engine owns no persistence; user rows come through [UserProvider],
// refresh-token rows through a session.Store, and tenant provisioning
// through [RegistrationStore]. Swapping a backend never touches engine code.
//
// # Token model
//
// Access tokens are signed, stateless, and short-lived; they are never
// individually revocable and verification touches no storage. Refresh tokens
// are persisted, long-lived, individually revocable, and rotated on every
// use: revocation happens at the refresh layer, and an access token's blast
// radius is bounded by its TTL.
//
// # Failure discipline
//
// Every credential failure collapses to [ErrInvalidCredentials]; audit
// records and security events carry the specific branch. Audit and event
// emission are fire-and-forget and can never abort a primary flow.
package authengine
