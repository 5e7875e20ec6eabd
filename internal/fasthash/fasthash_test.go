package fasthash

import "testing"

import "github.com/stretchr/testify/assert"

func TestStringSetAddRemoveContains(t *testing.T) {
	s := NewStringSet(4)
	assert.True(t, s.Add("/a"))
	assert.False(t, s.Add("/a"))
	assert.True(t, s.Contains("/a"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Add("/b"))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Remove("/a"))
	assert.False(t, s.Contains("/a"))
	assert.False(t, s.Remove("/a"))

	v, ok := s.Any()
	assert.True(t, ok)
	assert.Equal(t, "/b", v)
}

func TestStringSetGrowsAcrossManyBuckets(t *testing.T) {
	s := NewStringSet(1000)
	for i := 0; i < 500; i++ {
		s.Add(string(rune('a' + i%26)) + string(rune(i)))
	}
	assert.Equal(t, 500, s.Len())
}
