package dentrycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndPeek(t *testing.T) {
	c := New()
	assert.False(t, c.Contains(1))

	entries := []Entry{{Name: "a", Inode: 2, Type: FileTypeRegular}}
	c.Store(1, entries)
	assert.True(t, c.Contains(1))

	got, ok := c.Peek(1)
	require.True(t, ok)
	assert.Equal(t, entries, got)
	assert.True(t, c.Contains(1), "Peek must not remove the entry")
}

func TestTakeThenReinsertKeepsInFlight(t *testing.T) {
	c := New()
	c.Store(1, []Entry{{Name: "a"}, {Name: "b"}})

	list, ok := c.Take(1)
	require.True(t, ok)
	assert.False(t, c.Contains(1))

	c.Reinsert(1, list)
	assert.True(t, c.Contains(1))
}

func TestTakeWithoutReinsertEndsTransaction(t *testing.T) {
	c := New()
	c.Store(1, []Entry{{Name: "a"}})

	_, ok := c.Take(1)
	require.True(t, ok)
	assert.False(t, c.Contains(1))

	_, ok = c.Take(1)
	assert.False(t, ok, "second take on a drained cache finds nothing")
}

func TestForget(t *testing.T) {
	c := New()
	c.Store(1, []Entry{{Name: "a"}})
	c.Forget(1)
	assert.False(t, c.Contains(1))
}
