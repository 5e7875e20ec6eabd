package handleregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeHandlePinsInode(t *testing.T) {
	r := New()
	assert.False(t, r.IsHot(42))

	h1 := r.MakeHandle(nil, 42)
	assert.True(t, r.IsHot(42))

	h2 := r.MakeHandle(nil, 42)
	require.NotEqual(t, h1, h2)

	r.ReleaseHandle(h1)
	assert.True(t, r.IsHot(42)) // h2 still open

	r.ReleaseHandle(h2)
	assert.False(t, r.IsHot(42))
}

func TestHandleIDsMonotonic(t *testing.T) {
	r := New()
	var last ID
	for i := 0; i < 100; i++ {
		id := r.MakeHandle(nil, uint64(i))
		assert.Greater(t, id, last)
		last = id
	}
}

func TestTakeRestoreRoundTrip(t *testing.T) {
	r := New()
	h := r.MakeHandle(nil, 7)

	f, ino, ok := r.TakeFile(h)
	require.True(t, ok)
	assert.Equal(t, uint64(7), ino)
	assert.Nil(t, f)

	_, _, ok = r.TakeFile(h)
	assert.False(t, ok, "handle should be absent while taken")

	r.RestoreFile(h, f, ino)
	r.ReleaseHandle(h)
	assert.False(t, r.IsHot(7))
}

func TestReleaseOfTakenHandleIsNonFatal(t *testing.T) {
	var warned bool
	r := New(WithWarnLogger(func(string, ...any) { warned = true }))
	h := r.MakeHandle(nil, 1)

	_, _, ok := r.TakeFile(h)
	require.True(t, ok)

	r.ReleaseHandle(h) // handle is "taken"; must not panic
	assert.True(t, warned)
	assert.True(t, r.IsHot(1), "count must not be decremented for a dropped release")
}
