// Package identity implements the per-request identity/capability
// envelope: a scoped mechanism that switches the acting thread's
// filesystem UID/GID (and, for designated "fullaccess" users, raises
// specific privileged capabilities) for the duration of one request
// and guarantees restoration on every exit path.
//
// Capability manipulation has no third-party Go library anywhere in
// the retrieved example pack (see DESIGN.md); it is implemented
// directly over golang.org/x/sys/unix's raw capability syscalls,
// grounded on the same approach taken by other jacobsa/fuse-based
// filesystems in the pack.
package identity

// Settings is the process-wide configuration the envelope consults on
// every request: the daemon's own uid/gid, optional uid/gid
// translation maps, the set of uids granted unrestricted ("fullaccess")
// operation, and the capability set the process actually holds.
type Settings struct {
	UID uint32
	GID uint32

	FullAccess map[uint32]struct{}
	UserMap    map[uint32]uint32
	GroupMap   map[uint32]uint32

	Caps CapSet
}

// HasCap reports whether the process holds (permitted) the given
// capability.
func (s *Settings) HasCap(c Capability) bool {
	return s.Caps.Has(c)
}

// IsFullAccess reports whether uid is in the fullaccess set.
func (s *Settings) IsFullAccess(uid uint32) bool {
	if s.FullAccess == nil {
		return false
	}
	_, ok := s.FullAccess[uid]
	return ok
}

// Translate applies the configured uid/gid maps to a request's
// originating identity.
func (s *Settings) Translate(uid, gid uint32) (uint32, uint32) {
	if mapped, ok := s.UserMap[uid]; ok {
		uid = mapped
	}
	if mapped, ok := s.GroupMap[gid]; ok {
		gid = mapped
	}
	return uid, gid
}
