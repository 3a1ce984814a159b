package eventlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Severity grades security events.
type Severity string

const (
	// SeverityLow marks routine security events (backup code used).
	SeverityLow Severity = "low"
	// SeverityMedium marks events worth review (account locked out, bad MFA).
	SeverityMedium Severity = "medium"
	// SeverityHigh marks events needing attention (token replay, suspended
	// account probing).
	SeverityHigh Severity = "high"
)

// Fields is free-form structured context attached to an event.
type Fields map[string]interface{}

// Logger is the structured event collaborator. Every method is
// fire-and-forget: a nil *Logger is a valid no-op receiver and no method
// ever returns an error, so logging can never abort a primary flow.
type Logger struct {
	log *logrus.Logger
}

// New wraps a configured logrus logger.
func New(log *logrus.Logger) *Logger {
	if log == nil {
		return Discard()
	}
	return &Logger{log: log}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{log: log}
}

// AuthEvent records an authentication outcome at info level.
func (l *Logger) AuthEvent(kind string, fields Fields) {
	if l == nil {
		return
	}
	l.entry(fields).WithField("event", kind).Info("auth event")
}

// SecurityEvent records a security-relevant event at a level derived from
// its severity.
func (l *Logger) SecurityEvent(kind string, severity Severity, fields Fields) {
	if l == nil {
		return
	}
	entry := l.entry(fields).WithFields(logrus.Fields{
		"event":    kind,
		"severity": string(severity),
	})
	switch severity {
	case SeverityHigh:
		entry.Error("security event")
	case SeverityMedium:
		entry.Warn("security event")
	default:
		entry.Info("security event")
	}
}

// BusinessEvent records a domain action against an entity at info level.
func (l *Logger) BusinessEvent(action, entityType, entityID string, fields Fields) {
	if l == nil {
		return
	}
	l.entry(fields).WithFields(logrus.Fields{
		"action":      action,
		"entity_type": entityType,
		"entity_id":   entityID,
	}).Info("business event")
}

// Error records an unexpected failure with its context.
func (l *Logger) Error(err error, fields Fields) {
	if l == nil || err == nil {
		return
	}
	l.entry(fields).WithError(err).Error("unexpected failure")
}

// Debug records diagnostic detail.
func (l *Logger) Debug(msg string, fields Fields) {
	if l == nil {
		return
	}
	l.entry(fields).Debug(msg)
}

func (l *Logger) entry(fields Fields) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(l.log)
	}
	return l.log.WithFields(logrus.Fields(fields))
}
