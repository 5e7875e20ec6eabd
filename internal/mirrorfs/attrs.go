package mirrorfs

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// SetInodeAttributes applies whichever of mode/size/uid/gid/atime/mtime
// the kernel sent (uid and gid in one lchown, atime and mtime in one
// Chtimes), then replies with the fresh metadata — the same sequence
// the original's setattr follows. No other attribute field is looked
// at, and this handler never replies ENOSYS.
func (s *Server) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) (err error) {
	defer s.recovered("SetInodeAttributes", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	env := s.envelope(op.Header)
	defer env.Close()

	if op.Mode != nil {
		if err := os.Chmod(path, *op.Mode); err != nil {
			return errnoOf(err)
		}
	}

	if op.Size != nil {
		if err := os.Truncate(path, int64(*op.Size)); err != nil {
			return errnoOf(err)
		}
	}

	if op.Uid != nil || op.Gid != nil {
		fi, err := os.Lstat(path)
		if err != nil {
			return errnoOf(err)
		}
		st, ok := fi.Sys().(*syscall.Stat_t)
		if !ok {
			return syscall.EIO
		}

		uid, gid := int(st.Uid), int(st.Gid)
		if op.Uid != nil {
			uid = int(*op.Uid)
		}
		if op.Gid != nil {
			gid = int(*op.Gid)
		}
		if err := syscall.Lchown(path, uid, gid); err != nil {
			return errnoOf(err)
		}
	}

	if op.Atime != nil || op.Mtime != nil {
		var atime, mtime time.Time
		if op.Atime != nil {
			atime = *op.Atime
		}
		if op.Mtime != nil {
			mtime = *op.Mtime
		}
		if err := os.Chtimes(path, atime, mtime); err != nil {
			return errnoOf(err)
		}
	}

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
