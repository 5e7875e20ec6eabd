package mirrorfs

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalio/mirrorfs/internal/identity"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type testLogger struct{}

func (testLogger) Tracef(string, ...any) {}
func (testLogger) Debugf(string, ...any) {}
func (testLogger) Warnf(string, ...any)  {}
func (testLogger) Errorf(string, ...any) {}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	settings := &identity.Settings{UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}
	s := New(root, 64, 1*time.Second, settings, &fakeClock{now: time.Unix(1700000000, 0)}, testLogger{})
	require.NoError(t, s.Init(context.Background(), &fuseops.InitOp{}))
	return s, root
}

func TestLookUpInodeAndGetAttributes(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	op := &fuseops.LookUpInodeOp{Parent: rootInode, Name: "hello.txt"}
	require.NoError(t, s.LookUpInode(context.Background(), op))
	assert.Equal(t, uint64(2), op.Entry.Attributes.Size)

	attrOp := &fuseops.GetInodeAttributesOp{Inode: op.Entry.Child}
	require.NoError(t, s.GetInodeAttributes(context.Background(), attrOp))
	assert.Equal(t, uint64(2), attrOp.Attributes.Size)
}

func TestLookUpInodeMissingReturnsENOENT(t *testing.T) {
	s, _ := newTestServer(t)
	op := &fuseops.LookUpInodeOp{Parent: rootInode, Name: "nope"}
	err := s.LookUpInode(context.Background(), op)
	require.Error(t, err)
	assert.Equal(t, syscall.ENOENT, errnoOf(err))
}

func TestMkDirAndRmDir(t *testing.T) {
	s, root := newTestServer(t)

	mkOp := &fuseops.MkDirOp{Parent: rootInode, Name: "sub", Mode: 0o755}
	require.NoError(t, s.MkDir(context.Background(), mkOp))
	assert.DirExists(t, filepath.Join(root, "sub"))

	rmOp := &fuseops.RmDirOp{Parent: rootInode, Name: "sub"}
	require.NoError(t, s.RmDir(context.Background(), rmOp))
	assert.NoDirExists(t, filepath.Join(root, "sub"))
}

func TestCreateWriteReadFile(t *testing.T) {
	s, _ := newTestServer(t)

	createOp := &fuseops.CreateFileOp{Parent: rootInode, Name: "f", Mode: 0o644}
	require.NoError(t, s.CreateFile(context.Background(), createOp))

	writeOp := &fuseops.WriteFileOp{Inode: createOp.Entry.Child, Handle: createOp.Handle, Offset: 0, Data: []byte("payload")}
	require.NoError(t, s.WriteFile(context.Background(), writeOp))

	readOp := &fuseops.ReadFileOp{Inode: createOp.Entry.Child, Handle: createOp.Handle, Offset: 0, Dst: make([]byte, 7)}
	require.NoError(t, s.ReadFile(context.Background(), readOp))
	assert.Equal(t, "payload", string(readOp.Dst[:readOp.BytesRead]))

	require.NoError(t, s.ReleaseFileHandle(context.Background(), &fuseops.ReleaseFileHandleOp{Handle: createOp.Handle}))
}

func TestReadDirEmitsDotEntries(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	openOp := &fuseops.OpenDirOp{Inode: rootInode}
	require.NoError(t, s.OpenDir(context.Background(), openOp))

	readOp := &fuseops.ReadDirOp{Inode: rootInode, Handle: openOp.Handle, Offset: 0, Dst: make([]byte, 4096)}
	require.NoError(t, s.ReadDir(context.Background(), readOp))
	assert.Greater(t, readOp.BytesRead, 0)

	require.NoError(t, s.ReleaseDirHandle(context.Background(), &fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
}

func TestRenameMovesEntry(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("x"), 0o644))

	op := &fuseops.RenameOp{OldParent: rootInode, OldName: "old.txt", NewParent: rootInode, NewName: "new.txt"}
	require.NoError(t, s.Rename(context.Background(), op))

	assert.NoFileExists(t, filepath.Join(root, "old.txt"))
	assert.FileExists(t, filepath.Join(root, "new.txt"))
}

func TestRecoveredConvertsPanicToEIO(t *testing.T) {
	s, _ := newTestServer(t)

	panicky := func() (err error) {
		defer s.recovered("Panicky", &err)()
		var m map[string]int
		m["boom"] = 1 // nil map write panics
		return nil
	}

	err := panicky()
	require.Error(t, err)
	assert.Equal(t, syscall.EIO, err)
}

func TestRecoveredIsNoOpWithoutPanic(t *testing.T) {
	s, _ := newTestServer(t)

	ok := func() (err error) {
		defer s.recovered("NotPanicky", &err)()
		return syscall.ENOENT
	}

	assert.Equal(t, syscall.ENOENT, ok())
}

func TestCreateLinkSharesInode(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	lookupOp := &fuseops.LookUpInodeOp{Parent: rootInode, Name: "a.txt"}
	require.NoError(t, s.LookUpInode(context.Background(), lookupOp))

	linkOp := &fuseops.CreateLinkOp{Parent: rootInode, Name: "b.txt", Target: lookupOp.Entry.Child}
	require.NoError(t, s.CreateLink(context.Background(), linkOp))
	assert.Equal(t, lookupOp.Entry.Child, linkOp.Entry.Child)

	unlinkOp := &fuseops.UnlinkOp{Parent: rootInode, Name: "a.txt"}
	require.NoError(t, s.Unlink(context.Background(), unlinkOp))

	path, err := s.resolve(linkOp.Entry.Child)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.txt"), path)
}
