package identity

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Logger is the narrow structured-logging surface the envelope needs.
type Logger interface {
	Tracef(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Tracef(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// fullAccessCaps are the capabilities raised to effective for the
// duration of a request made by a "fullaccess" uid. This set matches
// spec.md's envelope construction step exactly: FOWNER (bypass owner
// checks) and DAC_OVERRIDE (bypass all DAC checks).
var fullAccessCaps = []Capability{CAP_FOWNER, CAP_DAC_OVERRIDE}

// capToken records which capabilities an Envelope raised, so they can
// be cleared again on Close.
type capToken struct {
	raised []Capability
	log    Logger
}

func (t *capToken) release() {
	for _, c := range t.raised {
		if err := dropEffective(c); err != nil {
			t.log.Warnf("identity: failed to drop capability %s: %v", c, err)
		}
	}
}

// Envelope is the scoped per-request identity/capability adjustment
// described in spec.md §4.4: construction switches the calling
// thread's filesystem UID/GID (and, for fullaccess uids, raises
// FOWNER/DAC_OVERRIDE); Close unconditionally restores everything it
// changed, regardless of how the request ended. Because fs-UID/GID are
// thread-local kernel state (I5), NewEnvelope locks the calling
// goroutine to its OS thread (runtime.LockOSThread) and Close unlocks
// it, so Close must run on the goroutine that constructed the Envelope.
type Envelope struct {
	log Logger

	origUID    uint32
	origGID    uint32
	changedUID bool
	changedGID bool

	caps *capToken
}

// NewEnvelope translates (reqUID, reqGID) through settings' maps,
// switches the thread's fs-UID/GID to match if permitted, and raises
// fullaccess capabilities if applicable. Construct and Close it around
// every request handler.
func NewEnvelope(settings *Settings, reqUID, reqGID uint32, log Logger) *Envelope {
	if log == nil {
		log = nopLogger{}
	}
	runtime.LockOSThread()
	uid, gid := settings.Translate(reqUID, reqGID)
	e := &Envelope{log: log}

	if uid != settings.UID {
		if !settings.HasCap(CAP_SETUID) {
			log.Tracef("identity: cannot set fs uid to %d: CAP_SETUID not permitted", uid)
		} else if prev, err := unix.Setfsuid(int(uid)); err != nil {
			log.Warnf("identity: setfsuid(%d) failed: %v", uid, err)
		} else {
			e.origUID = uint32(prev)
			e.changedUID = true
		}
	}

	if gid != settings.GID {
		if !settings.HasCap(CAP_SETGID) {
			log.Tracef("identity: cannot set fs gid to %d: CAP_SETGID not permitted", gid)
		} else if prev, err := unix.Setfsgid(int(gid)); err != nil {
			log.Warnf("identity: setfsgid(%d) failed: %v", gid, err)
		} else {
			e.origGID = uint32(prev)
			e.changedGID = true
		}
	}

	if settings.IsFullAccess(uid) {
		log.Tracef("identity: granting uid %d full access for this request", uid)
		e.caps = raiseCaps(settings, fullAccessCaps, log)
	}

	return e
}

func raiseCaps(settings *Settings, wanted []Capability, log Logger) *capToken {
	t := &capToken{log: log}
	for _, c := range wanted {
		if !settings.HasCap(c) {
			log.Warnf("identity: capability %s not permitted; operation may fail without it", c)
			continue
		}
		if err := raiseEffective(c); err != nil {
			log.Warnf("identity: failed to raise capability %s: %v", c, err)
			continue
		}
		t.raised = append(t.raised, c)
	}
	return t
}

// Close restores the thread's fs-UID/GID and drops any raised
// capabilities. It is idempotent-safe to call exactly once per
// Envelope, via defer, on every exit path (normal return, early
// return, or panic unwind).
func (e *Envelope) Close() {
	defer runtime.UnlockOSThread()
	if e.caps != nil {
		e.caps.release()
	}
	if e.changedUID {
		if _, err := unix.Setfsuid(int(e.origUID)); err != nil {
			e.log.Warnf("identity: failed to restore fs uid to %d: %v", e.origUID, err)
		}
	}
	if e.changedGID {
		if _, err := unix.Setfsgid(int(e.origGID)); err != nil {
			e.log.Warnf("identity: failed to restore fs gid to %d: %v", e.origGID, err)
		}
	}
}
