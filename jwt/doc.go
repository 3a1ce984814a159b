// Package jwt implements the token issuer: short-lived signed access tokens
// and long-lived signed refresh tokens over golang-jwt.
//
// Access tokens are stateless and never individually revocable; their blast
// radius is bounded by a short TTL. Refresh tokens pair the signed envelope
// with a persisted, individually revocable row (see the session package), so
// revocation happens at the refresh layer.
package jwt
