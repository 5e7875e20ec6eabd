package mirrorfs

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"
)

// ReadSymlink returns the link target, the pass-through equivalent of
// readlink(2) on the backing path.
func (s *Server) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) (err error) {
	defer s.recovered("ReadSymlink", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	target, err := os.Readlink(path)
	if err != nil {
		return errnoOf(err)
	}
	op.Target = target
	return nil
}

// xattrSize probes the size of a named/listed attribute by calling
// getter with a nil buffer first, then allocates and retries, looping
// if a concurrent writer changes the size between the two calls —
// the two-pass pattern the original's getxattr/listxattr both use.
func xattrSize(getter func([]byte) (int, error)) ([]byte, error) {
	for {
		n, err := getter(nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		buf := make([]byte, n)
		got, err := getter(buf)
		if err != nil {
			if err == unix.ERANGE {
				continue
			}
			return nil, err
		}
		return buf[:got], nil
	}
}

// GetXattr reads one extended attribute's value via the two-pass
// size/value syscall loop.
func (s *Server) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) (err error) {
	defer s.recovered("GetXattr", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	data, err := xattrSize(func(buf []byte) (int, error) {
		return unix.Lgetxattr(path, op.Name, buf)
	})
	if err != nil {
		return errnoOf(err)
	}

	op.BytesRead = copy(op.Dst, data)
	if len(data) > len(op.Dst) {
		return syscall.ERANGE
	}
	return nil
}

// ListXattr lists the names of every extended attribute set on path,
// using the same two-pass loop as GetXattr. Unlike the original (whose
// Rust FFI binding could only report success/failure, see DESIGN.md),
// this returns the actual name list to the kernel.
func (s *Server) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) (err error) {
	defer s.recovered("ListXattr", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	data, err := xattrSize(func(buf []byte) (int, error) {
		return unix.Llistxattr(path, buf)
	})
	if err != nil {
		return errnoOf(err)
	}

	op.BytesRead = copy(op.Dst, data)
	if len(data) > len(op.Dst) {
		return syscall.ERANGE
	}
	return nil
}

// SetXattr sets one extended attribute via lsetxattr(2).
func (s *Server) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) (err error) {
	defer s.recovered("SetXattr", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	if err := unix.Lsetxattr(path, op.Name, op.Value, int(op.Flags)); err != nil {
		return errnoOf(err)
	}
	return nil
}

// RemoveXattr removes one extended attribute.
func (s *Server) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) (err error) {
	defer s.recovered("RemoveXattr", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	if err := unix.Lremovexattr(path, op.Name); err != nil {
		return errnoOf(err)
	}
	return nil
}

// StatFS reports the backing filesystem's statvfs(2) data for the root.
func (s *Server) StatFS(ctx context.Context, op *fuseops.StatFSOp) (err error) {
	defer s.recovered("StatFS", &err)()

	env := s.envelope(op.Header)
	defer env.Close()

	var st unix.Statfs_t
	if err := unix.Statfs(s.backingRoot, &st); err != nil {
		return errnoOf(err)
	}

	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	op.IoSize = uint32(st.Bsize)
	return nil
}
