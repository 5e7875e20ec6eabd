// Package cfg decodes MirrorFS's CLI flags into a typed Config,
// following the teacher's cfg package convention: viper binds the
// flags, mapstructure decodes them into typed fields through a small
// set of custom decode hooks. Environment variables and config files
// are not read.
package cfg

import "time"

// LogSeverity is the --verbosity flag's value, validated against the
// five levels spec.md §6 names.
type LogSeverity string

// IDMap is a uid/gid translation table, decoded from a comma
// separated "FROM:TO,FROM:TO" flag value (see decode_hook.go).
type IDMap map[uint32]uint32

// Config is the fully decoded configuration for one mount.
type Config struct {
	Src string `mapstructure:"src"`
	Dst string `mapstructure:"dst"`

	Verbosity LogSeverity `mapstructure:"verbosity"`
	Quiet     bool        `mapstructure:"quiet"`

	AllowOther bool `mapstructure:"allow-other"`
	Foreground bool `mapstructure:"foreground"`

	EnablePrivileged bool     `mapstructure:"enable-privileged"`
	FullAccess       []uint32 `mapstructure:"fullaccess"`
	UserMap          IDMap    `mapstructure:"usermap"`
	GroupMap         IDMap    `mapstructure:"groupmap"`

	RingSize int           `mapstructure:"ring-size"`
	MinAge   time.Duration `mapstructure:"min-age"`

	LogFile string `mapstructure:"log-file"`
}
