package eventlog

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityEventSeverityLevels(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	log := New(base)

	log.SecurityEvent("token_replay", SeverityHigh, Fields{"user_id": "u1"})
	log.SecurityEvent("account_locked", SeverityMedium, nil)
	log.SecurityEvent("backup_code_used", SeverityLow, Fields{"remaining": 9})

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.ErrorLevel, entries[0].Level)
	assert.Equal(t, "token_replay", entries[0].Data["event"])
	assert.Equal(t, "u1", entries[0].Data["user_id"])
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
	assert.Equal(t, logrus.InfoLevel, entries[2].Level)
}

func TestAuthAndBusinessEvents(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	log := New(base)

	log.AuthEvent("login_success", Fields{"email": "user@example.com"})
	log.BusinessEvent("organization_created", "organization", "org1", nil)
	log.Error(errors.New("boom"), Fields{"op": "rotate"})

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "login_success", entries[0].Data["event"])
	assert.Equal(t, "organization_created", entries[1].Data["action"])
	assert.Equal(t, "organization", entries[1].Data["entity_type"])
	assert.Equal(t, logrus.ErrorLevel, entries[2].Level)
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var log *Logger

	// Must not panic.
	log.AuthEvent("login_success", nil)
	log.SecurityEvent("x", SeverityHigh, nil)
	log.BusinessEvent("a", "b", "c", nil)
	log.Error(errors.New("boom"), nil)
	log.Debug("msg", nil)
}
