package cfg

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDMap(t *testing.T) {
	m, err := parseIDMap("1000:2000,10:20")
	require.NoError(t, err)
	assert.Equal(t, IDMap{1000: 2000, 10: 20}, m)

	_, err = parseIDMap("bogus")
	assert.Error(t, err)
}

func TestValidateRequiresPrivilegedFlagForMaps(t *testing.T) {
	c := &Config{Src: t.TempDir(), Dst: t.TempDir(), UserMap: IDMap{1: 2}}
	err := Validate(c)
	assert.Error(t, err)

	c.EnablePrivileged = true
	assert.NoError(t, Validate(c))
}

func TestDecodeHookParsesFullAccessList(t *testing.T) {
	var c Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &c,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"verbosity":  "DEBUG",
		"fullaccess": "1000,1001,1002",
	}))

	assert.Equal(t, LogSeverity("Debug"), c.Verbosity)
	assert.Equal(t, []uint32{1000, 1001, 1002}, c.FullAccess)
}
