package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateAppliesMaps(t *testing.T) {
	s := &Settings{
		UID:      0,
		GID:      0,
		UserMap:  map[uint32]uint32{1000: 2000},
		GroupMap: map[uint32]uint32{10: 20},
	}
	u, g := s.Translate(1000, 10)
	assert.Equal(t, uint32(2000), u)
	assert.Equal(t, uint32(20), g)

	u, g = s.Translate(9, 9)
	assert.Equal(t, uint32(9), u)
	assert.Equal(t, uint32(9), g)
}

func TestFullAccessSet(t *testing.T) {
	s := &Settings{FullAccess: map[uint32]struct{}{500: {}}}
	assert.True(t, s.IsFullAccess(500))
	assert.False(t, s.IsFullAccess(501))
}

func TestCapSetHasBit(t *testing.T) {
	var caps CapSet
	assert.False(t, caps.Has(CAP_SETUID))
	caps = caps.with(CAP_SETUID)
	assert.True(t, caps.Has(CAP_SETUID))
	caps = caps.without(CAP_SETUID)
	assert.False(t, caps.Has(CAP_SETUID))
}
