package cfg

import "time"

// Relative log file path constant, matching spec.md §6 ("The file
// path is a relative constant").
const DefaultLogFile = "mirrorfs.log"

// Default returns the configuration used when no flags override it.
func Default() Config {
	return Config{
		Verbosity: "Info",
		RingSize:  1024,
		MinAge:    1 * time.Second,
		LogFile:   DefaultLogFile,
	}
}
