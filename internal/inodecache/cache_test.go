package inodecache

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalio/mirrorfs/internal/handleregistry"
)

func newTestCache(size int, minAge time.Duration) (*Cache, *handleregistry.Registry, *fakeClock) {
	hot := handleregistry.New()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New(size, minAge, hot, clock, WithInvariantChecking())
	return c, hot, clock
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

var _ timeutil.Clock = (*fakeClock)(nil)

func TestHardLinkScenario(t *testing.T) {
	c, _, _ := newTestCache(64, 0)
	c.Store(42, "/a", 1)
	c.Store(42, "/b", 1)

	p, err := c.Resolve(42)
	require.NoError(t, err)
	assert.Contains(t, []string{"/a", "/b"}, p)

	a := "/a"
	c.Remove(42, &a, 1)
	p, err = c.Resolve(42)
	require.NoError(t, err)
	assert.Equal(t, "/b", p)

	b := "/b"
	c.Remove(42, &b, 1)
	_, err = c.Resolve(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPinPreventsEviction(t *testing.T) {
	c, hot, clock := newTestCache(pad+minUsable, 0)
	h := hot.MakeHandle(nil, 999)
	c.Store(999, "/pinned", 1)

	// Fill the ring well past a full wrap so GC passes over slot 999,
	// aging every entry past the one-second minimum-age floor.
	for i := 0; i < 5*(pad+minUsable); i++ {
		clock.now = clock.now.Add(2 * time.Second)
		c.Store(uint64(1000+i), "/f", 1)
	}

	p, err := c.Resolve(999)
	require.NoError(t, err)
	assert.Equal(t, "/pinned", p)

	hot.ReleaseHandle(h)
}

func TestRingGrowthOnAllHot(t *testing.T) {
	size := 30
	c, hot, _ := newTestCache(size, 0)

	handles := make([]handleregistry.ID, 0, size)
	for i := 0; i < size; i++ {
		h := hot.MakeHandle(nil, uint64(i+1))
		handles = append(handles, h)
		c.Store(uint64(i+1), "/p", 1)
	}

	// All slots are occupied and hot; the next store must grow the
	// journal rather than looping forever.
	hNew := hot.MakeHandle(nil, 9999)
	c.Store(9999, "/new", 1)
	assert.Greater(t, len(c.journal), size)

	for i := 0; i < size; i++ {
		_, err := c.Resolve(uint64(i + 1))
		assert.NoError(t, err)
	}

	for _, h := range handles {
		hot.ReleaseHandle(h)
	}
	hot.ReleaseHandle(hNew)
}

func TestAutoremoveRespectsMinAge(t *testing.T) {
	c, _, clock := newTestCache(pad+minUsable, 5*time.Second)
	c.Store(1, "/young", 1)
	clock.now = clock.now.Add(1 * time.Second)

	for i := 0; i < 2*(pad+minUsable); i++ {
		c.Store(uint64(100+i), "/x", 1)
	}

	_, err := c.Resolve(1)
	assert.NoError(t, err, "entry younger than min_age must survive autoremove")
}

func TestRemoveOfUnknownInodeIsNonFatal(t *testing.T) {
	c, _, _ := newTestCache(64, 0)
	assert.NotPanics(t, func() { c.Remove(12345, nil, 1) })
}
