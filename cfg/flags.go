package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every mount flag on flagSet and binds each one into
// viper under the same mapstructure tag used by Config, the same
// one-flag-one-bind shape as the teacher's cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("verbosity", "", string(Default().Verbosity), "Log severity: trace, debug, info, warn, error.")
	if err = viper.BindPFlag("verbosity", flagSet.Lookup("verbosity")); err != nil {
		return err
	}

	flagSet.BoolP("quiet", "q", false, "Suppress the console log sink; the file sink still runs at trace.")
	if err = viper.BindPFlag("quiet", flagSet.Lookup("quiet")); err != nil {
		return err
	}

	flagSet.BoolP("allow-other", "", false, "Allow users other than the mounting user to access the mount.")
	if err = viper.BindPFlag("allow-other", flagSet.Lookup("allow-other")); err != nil {
		return err
	}

	flagSet.BoolP("foreground", "f", false, "Run in the foreground instead of daemonizing.")
	if err = viper.BindPFlag("foreground", flagSet.Lookup("foreground")); err != nil {
		return err
	}

	flagSet.BoolP("enable-privileged", "", false, "Allow --fullaccess/--usermap/--groupmap to take effect.")
	if err = viper.BindPFlag("enable-privileged", flagSet.Lookup("enable-privileged")); err != nil {
		return err
	}

	flagSet.StringP("fullaccess", "", "", "Comma-separated uids granted unrestricted access by raising CAP_FOWNER/CAP_DAC_OVERRIDE for their requests.")
	if err = viper.BindPFlag("fullaccess", flagSet.Lookup("fullaccess")); err != nil {
		return err
	}

	flagSet.StringP("usermap", "", "", "Comma-separated FROM:TO uid translations, e.g. \"1000:1001,1002:1003\".")
	if err = viper.BindPFlag("usermap", flagSet.Lookup("usermap")); err != nil {
		return err
	}

	flagSet.StringP("groupmap", "", "", "Comma-separated FROM:TO gid translations.")
	if err = viper.BindPFlag("groupmap", flagSet.Lookup("groupmap")); err != nil {
		return err
	}

	flagSet.IntP("ring-size", "", Default().RingSize, "Number of inodes the bounded ring cache retains.")
	if err = viper.BindPFlag("ring-size", flagSet.Lookup("ring-size")); err != nil {
		return err
	}

	flagSet.DurationP("min-age", "", Default().MinAge, "Minimum age an inode cache entry must reach before it is eligible for eviction.")
	if err = viper.BindPFlag("min-age", flagSet.Lookup("min-age")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", Default().LogFile, "Path to the rotated trace-level log file.")
	if err = viper.BindPFlag("log-file", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}
