package identity

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capability identifies one Linux capability bit. Values match the
// kernel's linux/capability.h numbering.
type Capability uint

const (
	CAP_CHOWN       Capability = 0
	CAP_DAC_OVERRIDE Capability = 1
	CAP_FOWNER      Capability = 3
	CAP_SETGID      Capability = 6
	CAP_SETUID      Capability = 7
	CAP_MKNOD       Capability = 27
	CAP_SETFCAP     Capability = 31
)

func (c Capability) String() string {
	switch c {
	case CAP_CHOWN:
		return "CAP_CHOWN"
	case CAP_DAC_OVERRIDE:
		return "CAP_DAC_OVERRIDE"
	case CAP_FOWNER:
		return "CAP_FOWNER"
	case CAP_SETGID:
		return "CAP_SETGID"
	case CAP_SETUID:
		return "CAP_SETUID"
	case CAP_MKNOD:
		return "CAP_MKNOD"
	case CAP_SETFCAP:
		return "CAP_SETFCAP"
	default:
		return fmt.Sprintf("CAP_%d", c)
	}
}

// AllCapabilities is the set of capabilities the mount daemon queries
// and may need, in the order they are probed at startup.
var AllCapabilities = []Capability{
	CAP_SETUID, CAP_SETGID, CAP_CHOWN, CAP_FOWNER, CAP_SETFCAP, CAP_MKNOD, CAP_DAC_OVERRIDE,
}

// CapSet is a bitmask of held (permitted) capabilities.
type CapSet uint64

func (s CapSet) Has(c Capability) bool {
	return s&(1<<uint(c)) != 0
}

func (s CapSet) with(c Capability) CapSet {
	return s | (1 << uint(c))
}

func (s CapSet) without(c Capability) CapSet {
	return s &^ (1 << uint(c))
}

// capUserHeader and capUserData mirror struct __user_cap_header_struct
// and struct __user_cap_data_struct from linux/capability.h. Two data
// structs are required by the v3 (64-bit) capability ABI but this
// package only ever touches capabilities below bit 32, so only the
// first is populated.
type capUserHeader struct {
	version uint32
	pid     int32
}

type capUserData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

const linuxCapabilityVersion3 = 0x20080522

func capget(hdr *capUserHeader, data *[2]capUserData) error {
	_, _, errno := unix.Syscall(unix.SYS_CAPGET,
		uintptr(unsafe.Pointer(hdr)), uintptr(unsafe.Pointer(&data[0])), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func capset(hdr *capUserHeader, data *[2]capUserData) error {
	_, _, errno := unix.Syscall(unix.SYS_CAPSET,
		uintptr(unsafe.Pointer(hdr)), uintptr(unsafe.Pointer(&data[0])), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// QueryPermitted reads the calling process's current permitted
// capability set from the kernel.
func QueryPermitted() (CapSet, error) {
	hdr := capUserHeader{version: linuxCapabilityVersion3, pid: 0}
	var data [2]capUserData
	if err := capget(&hdr, &data); err != nil {
		return 0, fmt.Errorf("identity: capget: %w", err)
	}
	return CapSet(data[0].permitted), nil
}

// prCapbsetDrop is PR_CAPBSET_DROP from linux/prctl.h: it removes a
// capability from the calling process's bounding set, which also
// prevents the capability from ever re-entering the permitted set
// (e.g. across an execve of a setuid-root binary).
const prCapbsetDrop = 24

func dropBoundingCap(c Capability) error {
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, prCapbsetDrop, uintptr(c), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// DropUnheld permanently removes every capability in AllCapabilities
// that held does not already contain from the process's bounding set,
// so it can never be (re)acquired later (e.g. by execve-ing a
// setuid-root helper), and reports which of the seven were retained.
// Call this once at startup, before any request thread's fs-uid/gid
// is ever switched by an Envelope.
//
// Dropping from the bounding set itself requires CAP_SETPCAP, which
// an ordinary unprivileged mount (the common case) will not have;
// that failure is logged and otherwise ignored; it does not prevent
// the mount from proceeding, since a process that cannot modify its
// own bounding set could not have used it to regain a capability
// anyway.
func DropUnheld(held CapSet, log Logger) error {
	if log == nil {
		log = nopLogger{}
	}

	var retained []Capability
	for _, c := range AllCapabilities {
		if held.Has(c) {
			retained = append(retained, c)
			continue
		}
		if err := dropBoundingCap(c); err != nil {
			log.Tracef("identity: could not drop %s from bounding set: %v", c, err)
		}
	}

	if len(retained) == 0 {
		log.Tracef("identity: none of the recognized capabilities are held; all dropped")
		return nil
	}
	log.Tracef("identity: retained capabilities: %v", retained)
	return nil
}

// raiseEffective sets c to 1 in the effective set, leaving permitted
// and inheritable untouched, and applies it via capset(2).
func raiseEffective(c Capability) error {
	return setEffective(c, true)
}

func dropEffective(c Capability) error {
	return setEffective(c, false)
}

func setEffective(c Capability, on bool) error {
	hdr := capUserHeader{version: linuxCapabilityVersion3, pid: 0}
	var data [2]capUserData
	if err := capget(&hdr, &data); err != nil {
		return fmt.Errorf("identity: capget: %w", err)
	}
	idx, bit := c/32, uint(c%32)
	var eff *uint32
	if idx == 0 {
		eff = &data[0].effective
	} else {
		eff = &data[1].effective
	}
	if on {
		*eff |= 1 << bit
	} else {
		*eff &^= 1 << bit
	}
	if err := capset(&hdr, &data); err != nil {
		return fmt.Errorf("identity: capset: %w", err)
	}
	return nil
}
