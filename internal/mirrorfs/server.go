// Package mirrorfs implements the filesystem request handler: it
// dispatches every FUSE upcall onto a syscall against the backing
// path, consulting and mutating the inode cache, hot-handle registry,
// dentry cache, and identity envelope described in SPEC_FULL.md §4.
package mirrorfs

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"

	"github.com/pascalio/mirrorfs/internal/dentrycache"
	"github.com/pascalio/mirrorfs/internal/handleregistry"
	"github.com/pascalio/mirrorfs/internal/identity"
	"github.com/pascalio/mirrorfs/internal/inodecache"
)

// rootInode is the permanently-pinned inode for the mount root (I6).
const rootInode = fuseops.InodeID(1)

// attrTTL is how long the kernel may cache attributes/entries between
// refreshes, matching the one-second TTL of the original implementation.
const attrTTL = 1 * time.Second

// Logger is the structured-logging surface the server needs.
type Logger interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Server implements fuseutil.FileSystem (see the var assertion in
// doc.go) as a pass-through onto backingRoot.
type Server struct {
	// Covers the corners of the protocol this mirror intentionally
	// does not implement (Fallocate, BatchForget, RmDir's readdirplus
	// cousins, ...) with ENOSYS, the same way gcsfuse's own fileSystem
	// embeds it rather than hand-writing stubs for every method.
	fuseutil.NotImplementedFileSystem

	backingRoot string

	inodes   *inodecache.Cache
	handles  *handleregistry.Registry
	dentries *dentrycache.Cache
	settings *identity.Settings
	clock    timeutil.Clock
	log      Logger

	mu            sync.Mutex // guards rootHandle below only
	rootHandle    handleregistry.ID
	statsTicker   *time.Ticker
	statsTickerMu sync.Mutex
}

// New constructs a Server rooted at backingRoot. ringSize/minAge feed
// the inode cache's constructor (SPEC_FULL.md §6, --ring-size/--min-age).
func New(backingRoot string, ringSize int, minAge time.Duration, settings *identity.Settings, clock timeutil.Clock, log Logger) *Server {
	handles := handleregistry.New(handleregistry.WithWarnLogger(log.Warnf))
	inodes := inodecache.New(ringSize, minAge, handles, clock, inodeCacheLogger(log))

	return &Server{
		backingRoot: backingRoot,
		inodes:      inodes,
		handles:     handles,
		dentries:    dentrycache.New(),
		settings:    settings,
		clock:       clock,
		log:         log,
	}
}

func inodeCacheLogger(l Logger) inodecache.Option {
	return inodecache.WithLogger(l)
}

// Init seeds the inode cache with {1 -> backingRoot} and pins it with a
// handle that is held until Destroy (I6).
func (s *Server) Init(ctx context.Context, op *fuseops.InitOp) (err error) {
	defer s.recovered("Init", &err)()

	s.inodes.Store(uint64(rootInode), s.backingRoot, 0)

	s.mu.Lock()
	s.rootHandle = s.handles.MakeHandle(nil, uint64(rootInode))
	s.mu.Unlock()

	s.log.Debugf("mirrorfs: mounted %s, inode 1 pinned", s.backingRoot)
	return nil
}

// Destroy is called once when the mount is torn down.
func (s *Server) Destroy() {
	s.statsTickerMu.Lock()
	if s.statsTicker != nil {
		s.statsTicker.Stop()
	}
	s.statsTickerMu.Unlock()

	s.mu.Lock()
	s.handles.ReleaseHandle(s.rootHandle)
	s.mu.Unlock()
}

// StartStatsTicker emits a periodic TRACE-level occupancy report,
// the Go equivalent of the original's print_stats (SPEC_FULL.md §11).
func (s *Server) StartStatsTicker(period time.Duration) {
	s.statsTickerMu.Lock()
	defer s.statsTickerMu.Unlock()
	if s.statsTicker != nil {
		return
	}
	s.statsTicker = time.NewTicker(period)
	go func() {
		for range s.statsTicker.C {
			s.log.Tracef("%s %s", s.inodes.Stats(), s.handles.String())
		}
	}()
}

// resolve resolves ino to a backing path, translating a cache miss
// into ENOENT as spec.md §4.2 Resolve requires.
func (s *Server) resolve(ino fuseops.InodeID) (string, error) {
	p, err := s.inodes.Resolve(uint64(ino))
	if err != nil {
		return "", syscall.ENOENT
	}
	return p, nil
}

// child joins a resolved parent path with a child name.
func (s *Server) child(parentPath, name string) string {
	return filepath.Join(parentPath, name)
}

// envelope opens the identity/capability scope for one request; the
// caller must `defer env.Close()`.
func (s *Server) envelope(h fuseops.OpHeader) *identity.Envelope {
	return identity.NewEnvelope(s.settings, h.Uid, h.Gid, s.log)
}

// recovered returns a function every handler defers as its first
// statement: `defer s.recovered("OpName", &err)()`. If the handler
// panics, it reports EIO through *err instead of letting the panic
// continue unwinding into jacobsa/fuse's dispatch loop and taking the
// whole mount down. Grounded on bazil.org/fuse's fs/serve.go, which
// recovers around every request handler and responds with an error,
// and complyue-jdfs's server.go, which recovers into a named error
// return per call.
func (s *Server) recovered(op string, err *error) func() {
	return func() {
		r := recover()
		if r == nil {
			return
		}
		buf := make([]byte, 1<<16)
		n := runtime.Stack(buf, false)
		s.log.Errorf("mirrorfs: panic in %s: %v\n%s", op, r, buf[:n])
		*err = syscall.EIO
	}
}

func (s *Server) statToAttrs(fi os.FileInfo) (fuseops.InodeAttributes, error) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fuseops.InodeAttributes{}, syscall.EIO
	}
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint32(st.Nlink),
		Mode:  fi.Mode(),
		Atime: timeFromTimespec(st.Atim),
		Mtime: timeFromTimespec(st.Mtim),
		Ctime: timeFromTimespec(st.Ctim),
		Uid:   st.Uid,
		Gid:   st.Gid,
	}, nil
}

func timeFromTimespec(ts syscall.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// errnoOfStale is returned when a handle ID the kernel supplied is not
// present in the registry (already released, or a protocol violation).
func errnoOfStale() syscall.Errno {
	return syscall.EBADF
}

// errnoOf unwraps the host error to the raw syscall.Errno that jacobsa/fuse
// forwards to the kernel as the operation's error reply, the same
// convention the teacher's fs/fs.go relies on (returning *PathError
// and similar directly and letting fuse's own unwrapping find the
// errno), made explicit here so every handler returns a bare errno.
// Errors that carry no errno become EIO.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if pe, ok := err.(*os.PathError); ok {
		if errno, ok := pe.Err.(syscall.Errno); ok {
			return errno
		}
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return syscall.EIO
}
