package mirrorfs

import (
	"context"
	"io/fs"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/pascalio/mirrorfs/internal/dentrycache"
	"github.com/pascalio/mirrorfs/internal/handleregistry"
)

// OpenDir pins the directory's inode via a handle with no backing file
// descriptor, the same "fd-less" handle the original's opendir makes.
func (s *Server) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) (err error) {
	defer s.recovered("OpenDir", &err)()

	if _, err := s.resolve(op.Inode); err != nil {
		return err
	}
	op.Handle = fuseops.HandleID(s.handles.MakeHandle(nil, uint64(op.Inode)))
	return nil
}

func dentryTypeOf(mode fs.FileMode) dentrycache.FileType {
	switch {
	case mode.IsRegular():
		return dentrycache.FileTypeRegular
	case mode.IsDir():
		return dentrycache.FileTypeDirectory
	case mode&fs.ModeSymlink != 0:
		return dentrycache.FileTypeSymlink
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		return dentrycache.FileTypeCharDevice
	case mode&fs.ModeDevice != 0:
		return dentrycache.FileTypeBlockDevice
	case mode&fs.ModeNamedPipe != 0:
		return dentrycache.FileTypeFIFO
	case mode&fs.ModeSocket != 0:
		return dentrycache.FileTypeSocket
	default:
		return dentrycache.FileTypeUnknown
	}
}

func direntTypeOf(t dentrycache.FileType) fuseutil.DirentType {
	switch t {
	case dentrycache.FileTypeRegular:
		return fuseutil.DT_File
	case dentrycache.FileTypeDirectory:
		return fuseutil.DT_Directory
	case dentrycache.FileTypeSymlink:
		return fuseutil.DT_Link
	case dentrycache.FileTypeBlockDevice:
		return fuseutil.DT_Block
	case dentrycache.FileTypeCharDevice:
		return fuseutil.DT_Char
	case dentrycache.FileTypeFIFO:
		return fuseutil.DT_FIFO
	case dentrycache.FileTypeSocket:
		return fuseutil.DT_Socket
	default:
		return fuseutil.DT_Unknown
	}
}

// readBackingDir lists path once, skipping entries whose type cannot be
// determined (logged), exactly as the original does.
func (s *Server) readBackingDir(path string) ([]dentrycache.Entry, error) {
	des, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]dentrycache.Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			s.log.Warnf("mirrorfs: readdir %s/%s: %v", path, de.Name(), err)
			continue
		}
		st, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			s.log.Errorf("mirrorfs: readdir %s/%s: no stat data", path, de.Name())
			continue
		}
		typ := dentryTypeOf(info.Mode())
		if typ == dentrycache.FileTypeUnknown {
			s.log.Errorf("mirrorfs: readdir %s/%s: cannot determine file type", path, de.Name())
			continue
		}
		entries = append(entries, dentrycache.Entry{
			Name:  de.Name(),
			Inode: st.Ino,
			Type:  typ,
		})
	}
	return entries, nil
}

// writeDirent renders one entry into op.Dst, returning false if it did
// not fit (the kernel will call again with a fresh buffer).
func writeDirent(op *fuseops.ReadDirOp, offset fuseops.DirOffset, inode fuseops.InodeID, name string, typ fuseutil.DirentType) bool {
	n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
		Offset: offset,
		Inode:  inode,
		Name:   name,
		Type:   typ,
	})
	if n == 0 {
		return false
	}
	op.BytesRead += n
	return true
}

// ReadDir buffers one backing listing per directory inode at offset
// 0 (emitting the synthetic "." and ".." entries first) and drains it
// across however many paginated calls the kernel needs, mirroring the
// original's cache-and-pop readdir loop.
func (s *Server) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) (err error) {
	defer s.recovered("ReadDir", &err)()

	path, err := s.resolve(op.Inode)
	if err != nil {
		return err
	}

	if op.Offset == 0 {
		entries, err := s.readBackingDir(path)
		if err != nil {
			return errnoOf(err)
		}
		s.dentries.Store(uint64(op.Inode), entries)

		if !writeDirent(op, 1, op.Inode, ".", fuseutil.DT_Directory) {
			return nil
		}
		if !writeDirent(op, 2, op.Inode, "..", fuseutil.DT_Directory) {
			return nil
		}
	}

	entries, ok := s.dentries.Take(uint64(op.Inode))
	if !ok {
		return nil
	}

	for i, e := range entries {
		if !writeDirent(op, fuseops.DirOffset(i)+3, fuseops.InodeID(e.Inode), e.Name, direntTypeOf(e.Type)) {
			s.dentries.Reinsert(uint64(op.Inode), entries[i:])
			return nil
		}
	}

	return nil
}

// ReleaseDirHandle drops the pin and forgets any buffered listing.
func (s *Server) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) (err error) {
	defer s.recovered("ReleaseDirHandle", &err)()

	id := handleregistry.ID(op.Handle)
	if f, ino, ok := s.handles.TakeFile(id); ok {
		s.dentries.Forget(ino)
		s.handles.RestoreFile(id, f, ino)
	}
	s.handles.ReleaseHandle(id)
	return nil
}
