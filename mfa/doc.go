// Package mfa implements the second-factor verifier: RFC 6238 TOTP codes
// with a bounded clock-skew window, and single-use backup codes issued in a
// fixed batch at enrollment time.
package mfa
