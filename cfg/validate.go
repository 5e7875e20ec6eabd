package cfg

import (
	"fmt"
	"os"
)

// Validate checks the fields a successfully parsed Config must
// satisfy before a mount is attempted.
func Validate(c *Config) error {
	if c.Src == "" || c.Dst == "" {
		return fmt.Errorf("cfg: SRC and DST are both required")
	}
	if fi, err := os.Stat(c.Src); err != nil {
		return fmt.Errorf("cfg: backing directory %q: %w", c.Src, err)
	} else if !fi.IsDir() {
		return fmt.Errorf("cfg: backing path %q is not a directory", c.Src)
	}
	if fi, err := os.Stat(c.Dst); err != nil {
		return fmt.Errorf("cfg: mount point %q: %w", c.Dst, err)
	} else if !fi.IsDir() {
		return fmt.Errorf("cfg: mount point %q is not a directory", c.Dst)
	}
	if !c.EnablePrivileged && (len(c.FullAccess) > 0 || len(c.UserMap) > 0 || len(c.GroupMap) > 0) {
		return fmt.Errorf("cfg: --fullaccess/--usermap/--groupmap require --enable-privileged")
	}
	return nil
}
