// Package eventlog is the structured logging collaborator consumed by the
// engine: auth, security, and business events over logrus. All calls are
// fire-and-forget and a nil logger is a safe no-op.
package eventlog
