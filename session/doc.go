// Package session persists refresh tokens: the stateful, individually
// revocable half of a session. It defines the [RefreshToken] model, the
// [Store] contract with compare-and-swap rotation, and a Redis-backed
// implementation; a SQL implementation lives in the sqlstore package.
package session
