package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropUnheldKeepsEverythingWhenAllCapsHeld(t *testing.T) {
	// With every recognized capability already held, DropUnheld must
	// not attempt to touch the bounding set at all — only report what
	// was retained.
	var held CapSet
	for _, c := range AllCapabilities {
		held = held.with(c)
	}
	log := &capturingLogger{}
	require.NoError(t, DropUnheld(held, log))
	assert.NotEmpty(t, log.traced)
	assert.Empty(t, log.warned)
}
