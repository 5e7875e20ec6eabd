package mirrorfs

import (
	"context"
	"io"
	"os"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/pascalio/mirrorfs/internal/handleregistry"
)

// openFlags translates the kernel's open(2) flags into the os.OpenFile
// flag set, the Go analogue of the original's read_f/write_f/append_f/
// truncate_f translation.
func openFlags(flags uint32) int {
	var f int
	switch flags & 0x3 { // O_ACCMODE
	case os.O_RDONLY:
		f |= os.O_RDONLY
	case os.O_WRONLY:
		f |= os.O_WRONLY
	case os.O_RDWR:
		f |= os.O_RDWR
	}
	if flags&syscallAppend != 0 {
		f |= os.O_APPEND
	}
	if flags&syscallTrunc != 0 {
		f |= os.O_TRUNC
	}
	if flags&syscallCreat != 0 {
		f |= os.O_CREATE
	}
	if flags&syscallExcl != 0 {
		f |= os.O_EXCL
	}
	return f
}

const (
	syscallAppend = 0x400
	syscallTrunc  = 0x200
	syscallCreat  = 0x40
	syscallExcl   = 0x80
)

// OpenFile opens the backing file with the translated flags and pins
// it under a new handle.
func (s *Server) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) (err error) {
	defer s.recovered("OpenFile", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	f, err := os.OpenFile(path, openFlags(op.Flags), 0)
	if err != nil {
		return errnoOf(err)
	}

	op.Handle = fuseops.HandleID(s.handles.MakeHandle(f, uint64(op.Inode)))
	return nil
}

// ReadFile reads into op.Dst starting at op.Offset, retrying short
// reads until the buffer fills or EOF is reached, matching the
// original's read loop (including EINTR retry).
func (s *Server) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) (err error) {
	defer s.recovered("ReadFile", &err)()

	id := handleregistry.ID(op.Handle)
	f, ino, ok := s.handles.TakeFile(id)
	if !ok {
		return errnoOfStale()
	}
	defer s.handles.RestoreFile(id, f, ino)

	env := s.envelope(op.Header)
	defer env.Close()

	for op.BytesRead < len(op.Dst) {
		n, err := f.ReadAt(op.Dst[op.BytesRead:], op.Offset+int64(op.BytesRead))
		op.BytesRead += n
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errnoOf(err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// WriteFile writes op.Data at the given offset with os.File.WriteAt,
// which repeats pwrite(2) until all of op.Data is written or an error
// occurs.
func (s *Server) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) (err error) {
	defer s.recovered("WriteFile", &err)()

	id := handleregistry.ID(op.Handle)
	f, ino, ok := s.handles.TakeFile(id)
	if !ok {
		return errnoOfStale()
	}
	defer s.handles.RestoreFile(id, f, ino)

	env := s.envelope(op.Header)
	defer env.Close()

	if _, err := f.WriteAt(op.Data, op.Offset); err != nil {
		return errnoOf(err)
	}
	return nil
}

// SyncFile fsyncs the backing descriptor.
func (s *Server) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) (err error) {
	defer s.recovered("SyncFile", &err)()

	id := handleregistry.ID(op.Handle)
	f, ino, ok := s.handles.TakeFile(id)
	if !ok {
		return errnoOfStale()
	}
	defer s.handles.RestoreFile(id, f, ino)

	if err := f.Sync(); err != nil {
		return errnoOf(err)
	}
	return nil
}

// FlushFile is called once per close(2) of a duplicated descriptor;
// the original's flush maps onto File::flush, which for a plain POSIX
// file is equivalent to a sync of buffered writes. Go's os.File has no
// distinct userspace write buffer, so flush and sync perform the same
// fsync here.
func (s *Server) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) (err error) {
	defer s.recovered("FlushFile", &err)()

	id := handleregistry.ID(op.Handle)
	f, ino, ok := s.handles.TakeFile(id)
	if !ok {
		return errnoOfStale()
	}
	defer s.handles.RestoreFile(id, f, ino)

	if err := f.Sync(); err != nil {
		return errnoOf(err)
	}
	return nil
}

// ReleaseFileHandle closes the backing descriptor and drops the pin.
func (s *Server) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) (err error) {
	defer s.recovered("ReleaseFileHandle", &err)()

	id := handleregistry.ID(op.Handle)
	if f, ino, ok := s.handles.TakeFile(id); ok {
		if f != nil {
			f.Close()
		}
		s.handles.RestoreFile(id, f, ino)
	}
	s.handles.ReleaseHandle(id)
	return nil
}
