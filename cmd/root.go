// Package cmd wires MirrorFS's cobra command, binding flags through
// viper into a cfg.Config exactly as the teacher's cmd package does,
// then drives the mount/daemonize sequence in mount.go.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pascalio/mirrorfs/cfg"
)

var (
	bindErr      error
	unmarshalErr error

	// Config is the fully decoded configuration for this invocation,
	// populated by initConfig before RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "mirrorfs [flags] SRC DST",
	Short: "Mount a pass-through mirror of SRC at DST",
	Long: `MirrorFS is a user-space FUSE filesystem that mirrors one backing
directory tree at a mount point, translating every filesystem call into
the equivalent syscall against the backing path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}

		src, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving SRC: %w", err)
		}
		dst, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving DST: %w", err)
		}
		Config.Src = src
		Config.Dst = dst

		if err := cfg.Validate(&Config); err != nil {
			return err
		}

		return runMount(&Config)
	},
}

// Execute runs the root command, printing any error and exiting
// non-zero, the same top-level shape as the teacher's cmd.Execute.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	unmarshalErr = viper.Unmarshal(&Config, viper.DecodeHook(cfg.DecodeHook()))
}
