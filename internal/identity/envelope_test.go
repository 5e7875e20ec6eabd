package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type capturingLogger struct {
	traced []string
	warned []string
}

func (l *capturingLogger) Tracef(format string, args ...any) {
	l.traced = append(l.traced, format)
}
func (l *capturingLogger) Warnf(format string, args ...any) {
	l.warned = append(l.warned, format)
}

func TestEnvelopeWithoutSetuidCapIsNoOp(t *testing.T) {
	// Without CAP_SETUID/CAP_SETGID permitted, the envelope must not
	// attempt the privileged syscalls and Close must still be safe.
	settings := &Settings{UID: 1000, GID: 1000}
	log := &capturingLogger{}

	env := NewEnvelope(settings, 500, 500, log)
	assert.False(t, env.changedUID)
	assert.False(t, env.changedGID)
	assert.NotEmpty(t, log.traced)

	env.Close()
}

func TestEnvelopeNoopWhenIdentityMatchesOwnUID(t *testing.T) {
	settings := &Settings{UID: 1000, GID: 1000, Caps: CapSet(0).with(CAP_SETUID).with(CAP_SETGID)}
	env := NewEnvelope(settings, 1000, 1000, nil)
	assert.False(t, env.changedUID)
	assert.False(t, env.changedGID)
	env.Close()
}

func TestFullAccessWithoutPermittedCapsWarnsButDoesNotPanic(t *testing.T) {
	settings := &Settings{
		UID:        1000,
		GID:        1000,
		FullAccess: map[uint32]struct{}{500: {}},
	}
	log := &capturingLogger{}
	env := NewEnvelope(settings, 500, 500, log)
	assert.NotEmpty(t, log.warned, "missing FOWNER/DAC_OVERRIDE must be warned about")
	assert.NotPanics(t, env.Close)
}
