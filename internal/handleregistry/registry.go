// Package handleregistry tracks currently open file descriptors and
// pins the inodes they reference, so the inode cache never evicts an
// inode the kernel still holds open.
package handleregistry

import (
	"fmt"
	"os"
	"sync"
)

// ID is an opaque 64-bit handle token returned by open/opendir/create
// and passed back on every subsequent read/write/flush/release.
type ID uint64

type entry struct {
	file *os.File // nil for directory handles
	ino  uint64
}

// Registry issues monotonically increasing handle IDs and associates
// each with an optional file descriptor and an inode. It also keeps a
// per-inode open count used by the inode cache for pin-accounting.
//
// A single mutex guards the whole table; every operation here is O(1)
// and never blocks on I/O.
type Registry struct {
	mu sync.Mutex // GUARDED_BY below

	next    ID                 // GUARDED_BY(mu)
	byFh    map[ID]entry       // GUARDED_BY(mu)
	openBy  map[uint64]int     // GUARDED_BY(mu), ino -> open handle count
	logWarn func(string, ...any)
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithWarnLogger overrides the logger used for recoverable
// inconsistencies (double release of a taken handle).
func WithWarnLogger(f func(string, ...any)) Option {
	return func(r *Registry) { r.logWarn = f }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		byFh:    make(map[ID]entry),
		openBy:  make(map[uint64]int),
		logWarn: func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MakeHandle allocates a new handle for ino, optionally wrapping an
// already-open *os.File (nil for directory handles, which still pin
// the inode by incrementing its open count).
func (r *Registry) MakeHandle(f *os.File, ino uint64) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := r.next
	r.byFh[id] = entry{file: f, ino: ino}
	r.openBy[ino]++
	return id
}

// TakeFile removes the table entry for id and returns its file, so the
// caller can perform blocking I/O on it without holding the registry
// lock. The caller must call RestoreFile before ReleaseHandle is
// allowed to see the handle again.
func (r *Registry) TakeFile(id ID) (*os.File, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byFh[id]
	if !ok {
		return nil, 0, false
	}
	delete(r.byFh, id)
	return e.file, e.ino, true
}

// RestoreFile reinstates an entry previously removed by TakeFile.
func (r *Registry) RestoreFile(id ID, f *os.File, ino uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byFh[id] = entry{file: f, ino: ino}
}

// ReleaseHandle deletes the handle and decrements ino's open count.
// Releasing a handle that is currently "taken" (mid take/restore, see
// TakeFile) is a recoverable, logged error: the release is dropped
// rather than corrupting the open count, since the concurrent holder
// of the taken file is still expected to call RestoreFile.
func (r *Registry) ReleaseHandle(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byFh[id]
	if !ok {
		r.logWarn("handleregistry: release of handle %d while taken; dropping", id)
		return
	}
	delete(r.byFh, id)
	r.openBy[e.ino]--
	if r.openBy[e.ino] <= 0 {
		delete(r.openBy, e.ino)
	}
}

// IsHot reports whether ino has at least one outstanding handle.
func (r *Registry) IsHot(ino uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.openBy[ino] > 0
}

// String renders table occupancy for diagnostics.
func (r *Registry) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("handleregistry{handles=%d hot_inodes=%d}", len(r.byFh), len(r.openBy))
}
