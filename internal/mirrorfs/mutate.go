package mirrorfs

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"
)

// MkDir creates a directory on the backing tree and stores its inode,
// mirroring the original's mkdir handler.
func (s *Server) MkDir(ctx context.Context, op *fuseops.MkDirOp) (err error) {
	defer s.recovered("MkDir", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	if err := os.Mkdir(path, op.Mode); err != nil {
		return errnoOf(err)
	}

	entry, err := s.statAndStore(path, int(op.Header.Pid))
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = entry
	return nil
}

// MkNode creates a device/FIFO/socket node via mknod(2), the Go
// equivalent of the original's use of nix::sys::stat::mknod.
func (s *Server) MkNode(ctx context.Context, op *fuseops.MkNodeOp) (err error) {
	defer s.recovered("MkNode", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	if err := unix.Mknod(path, uint32(op.Mode), int(op.Rdev)); err != nil {
		return errnoOf(err)
	}

	entry, err := s.statAndStore(path, int(op.Header.Pid))
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = entry
	return nil
}

// CreateFile creates a regular file with O_EXCL semantics, stores its
// inode, and pins a handle for the descriptor the kernel will write
// through immediately, matching the original's create().
func (s *Server) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) (err error) {
	defer s.recovered("CreateFile", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, op.Mode)
	if err != nil {
		return errnoOf(err)
	}

	entry, err := s.statAndStore(path, int(op.Header.Pid))
	if err != nil {
		f.Close()
		return errnoOf(err)
	}

	op.Entry = entry
	op.Handle = fuseops.HandleID(s.handles.MakeHandle(f, uint64(entry.Child)))
	return nil
}

// CreateSymlink creates a symlink pointing at op.Target.
func (s *Server) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) (err error) {
	defer s.recovered("CreateSymlink", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	if err := os.Symlink(op.Target, path); err != nil {
		return errnoOf(err)
	}

	entry, err := s.statAndStore(path, int(op.Header.Pid))
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = entry
	return nil
}

// CreateLink hard-links an existing inode under a new (parent, name).
// Unlike the original (which never records the new path, see
// DESIGN.md), this stores the new path too so that Remove(old) still
// leaves the new path resolvable, matching the hard-link invariant.
func (s *Server) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) (err error) {
	defer s.recovered("CreateLink", &err)()

	existing, err := s.resolve(op.Target)
	if err != nil {
		return err
	}

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	newPath := s.child(parentPath, op.Name)
	if newPath == existing {
		return syscall.EEXIST
	}

	if err := os.Link(existing, newPath); err != nil {
		return errnoOf(err)
	}

	entry, err := s.statAndStore(newPath, int(op.Header.Pid))
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = entry
	return nil
}

// RmDir removes an empty directory, resolving its inode first so the
// cache entry can be dropped afterward.
func (s *Server) RmDir(ctx context.Context, op *fuseops.RmDirOp) (err error) {
	defer s.recovered("RmDir", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	fi, err := os.Lstat(path)
	if err != nil {
		return errnoOf(err)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return syscall.EIO
	}
	ino := st.Ino

	if err := os.Remove(path); err != nil {
		return errnoOf(err)
	}

	s.inodes.Remove(ino, &path, 0)
	return nil
}

// Unlink removes a regular file or symlink directory entry.
func (s *Server) Unlink(ctx context.Context, op *fuseops.UnlinkOp) (err error) {
	defer s.recovered("Unlink", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	fi, err := os.Lstat(path)
	if err != nil {
		return errnoOf(err)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return syscall.EIO
	}
	ino := st.Ino

	if err := os.Remove(path); err != nil {
		return errnoOf(err)
	}

	s.inodes.Remove(ino, &path, 0)
	return nil
}

// Rename moves (OldParent, OldName) to (NewParent, NewName). The
// original computes both sides from the old name/parent, which looks
// like a transcription bug (see DESIGN.md); this uses the new
// parent/name the kernel actually supplied.
func (s *Server) Rename(ctx context.Context, op *fuseops.RenameOp) (err error) {
	defer s.recovered("Rename", &err)()

	oldParentPath, err := s.resolve(op.OldParent)
	if err != nil {
		return err
	}
	newParentPath, err := s.resolve(op.NewParent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	oldPath := s.child(oldParentPath, op.OldName)
	newPath := s.child(newParentPath, op.NewName)

	fi, err := os.Lstat(oldPath)
	if err != nil {
		return errnoOf(err)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return syscall.EIO
	}
	ino := st.Ino

	if err := os.Rename(oldPath, newPath); err != nil {
		return errnoOf(err)
	}

	s.inodes.Remove(ino, &oldPath, 0)
	s.inodes.Store(ino, newPath, int(op.Header.Pid))
	return nil
}
