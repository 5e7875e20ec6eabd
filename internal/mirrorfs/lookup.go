package mirrorfs

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
)

// statAndStore lstats path (never following the final symlink, matching
// the original's symlink_metadata), stores the (ino, path) pair in the
// inode cache, and returns a populated ChildInodeEntry.
func (s *Server) statAndStore(path string, pid int) (fuseops.ChildInodeEntry, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return fuseops.ChildInodeEntry{}, err
	}

	attrs, err := s.statToAttrs(fi)
	if err != nil {
		return fuseops.ChildInodeEntry{}, err
	}

	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fuseops.ChildInodeEntry{}, syscall.EIO
	}
	ino := st.Ino
	s.inodes.Store(ino, path, pid)

	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(ino),
		Attributes:           attrs,
		AttributesExpiration: s.clock.Now().Add(attrTTL),
		EntryExpiration:      s.clock.Now().Add(attrTTL),
	}, nil
}

// LookUpInode resolves (parent, name) to a child inode, lstats it, and
// records the mapping, mirroring the original's lookup handler.
func (s *Server) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) (err error) {
	defer s.recovered("LookUpInode", &err)()

	parentPath, err := s.resolve(op.Parent)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	path := s.child(parentPath, op.Name)
	entry, err := s.statAndStore(path, int(op.Header.Pid))
	if err != nil {
		s.log.Warnf("mirrorfs: lookup %s: %v", path, err)
		return errnoOf(err)
	}

	op.Entry = entry
	return nil
}

// GetInodeAttributes re-lstats the backing path for the given inode.
func (s *Server) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) (err error) {
	defer s.recovered("GetInodeAttributes", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	fi, err := os.Lstat(path)
	if err != nil {
		return errnoOf(err)
	}

	attrs, err := s.statToAttrs(fi)
	if err != nil {
		return err
	}

	op.Attributes = attrs
	op.AttributesExpiration = s.clock.Now().Add(attrTTL)
	return nil
}

// ForgetInode removes the inode from the cache unconditionally, whatever
// the lookup count op.N, exactly as the original's forget() does (it
// never special-cases the root).
func (s *Server) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) (err error) {
	defer s.recovered("ForgetInode", &err)()

	s.inodes.Remove(uint64(op.Inode), nil, 0)
	return nil
}
