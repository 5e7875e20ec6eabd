package identity

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAccessFullAccessBypassesMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o000))

	settings := &Settings{FullAccess: map[uint32]struct{}{42: {}}}
	assert.NoError(t, CheckAccess(settings, 42, 42, path, ModeRead|ModeWrite|ModeExecute))
}

func TestCheckAccessOwnerBits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o640))
	fi, err := os.Lstat(path)
	require.NoError(t, err)
	st := fi.Sys().(*syscall.Stat_t)

	settings := &Settings{}
	assert.NoError(t, CheckAccess(settings, st.Uid, st.Gid, path, ModeRead))
	assert.Error(t, CheckAccess(settings, st.Uid, st.Gid, path, ModeExecute))
}

func TestCheckAccessGroupBits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o640))
	fi, err := os.Lstat(path)
	require.NoError(t, err)
	st := fi.Sys().(*syscall.Stat_t)

	settings := &Settings{}
	assert.NoError(t, CheckAccess(settings, st.Uid+1, st.Gid, path, ModeRead))
	assert.Error(t, CheckAccess(settings, st.Uid+1, st.Gid, path, ModeWrite))
}

func TestCheckAccessOtherBitsAndMissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	fi, err := os.Lstat(path)
	require.NoError(t, err)
	st := fi.Sys().(*syscall.Stat_t)

	settings := &Settings{}
	assert.NoError(t, CheckAccess(settings, st.Uid+1, st.Gid+1, path, ModeRead))
	assert.Error(t, CheckAccess(settings, st.Uid+1, st.Gid+1, path, ModeWrite))

	assert.Error(t, CheckAccess(settings, 0, 0, filepath.Join(path, "nope"), ModeRead))
}
