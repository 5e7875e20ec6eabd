package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"github.com/kardianos/osext"

	"github.com/pascalio/mirrorfs/cfg"
	"github.com/pascalio/mirrorfs/internal/identity"
	"github.com/pascalio/mirrorfs/internal/logger"
	"github.com/pascalio/mirrorfs/internal/mirrorfs"
)

// settingsFromConfig builds the identity envelope's Settings from the
// decoded flags, querying the process's own permitted capability set
// (SPEC_FULL.md §11) rather than trusting the caller's claim of root,
// then permanently drops every recognized capability it doesn't
// actually hold so none can be regained later in the process's life.
func settingsFromConfig(c *cfg.Config, log identity.Logger) (*identity.Settings, error) {
	caps, err := identity.QueryPermitted()
	if err != nil {
		return nil, fmt.Errorf("querying process capabilities: %w", err)
	}
	if err := identity.DropUnheld(caps, log); err != nil {
		return nil, fmt.Errorf("dropping unheld capabilities: %w", err)
	}

	fullAccess := make(map[uint32]struct{}, len(c.FullAccess))
	for _, uid := range c.FullAccess {
		fullAccess[uid] = struct{}{}
	}

	return &identity.Settings{
		UID:        uint32(os.Getuid()),
		GID:        uint32(os.Getgid()),
		FullAccess: fullAccess,
		UserMap:    c.UserMap,
		GroupMap:   c.GroupMap,
		Caps:       caps,
	}, nil
}

// buildServer assembles the mirrorfs.Server and the logging pipeline it
// writes through, but does not mount it.
func buildServer(c *cfg.Config) (*mirrorfs.Server, func() error, error) {
	level, err := logger.ParseLevel(string(c.Verbosity))
	if err != nil {
		return nil, nil, err
	}
	slogger, closeLog, err := logger.New(logger.Config{
		ConsoleLevel: level,
		ConsoleQuiet: c.Quiet,
		Format:       logger.FormatText,
		FilePath:     c.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}
	adapter := logger.Adapter{L: slogger}

	settings, err := settingsFromConfig(c, adapter)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	server := mirrorfs.New(c.Src, c.RingSize, c.MinAge, settings, timeutil.RealClock(), adapter)
	return server, closeLog, nil
}

// fuseMountConfig translates cfg.Config into the jacobsa/fuse mount
// options, the same shape as the teacher's getFuseMountConfig.
//
// default_permissions is always set: jacobsa/fuse's FileSystem
// interface has no FUSE_ACCESS upcall, so u_access (internal/identity
// CheckAccess) has nothing to be called from. The kernel's own DAC
// check against the cached attributes is the only enforcement path
// for access(2)/execve(2) permission checks under this mount.
func fuseMountConfig(c *cfg.Config) *fuse.MountConfig {
	options := map[string]string{"default_permissions": ""}
	if c.AllowOther {
		options["allow_other"] = ""
	}
	return &fuse.MountConfig{
		FSName:               "mirrorfs",
		Subtype:              "mirrorfs",
		VolumeName:           "mirrorfs",
		Options:              options,
		EnableParallelDirOps: true,
	}
}

// runMount mounts c.Src at c.Dst, daemonizing unless c.Foreground is
// set, following the teacher's legacy_main fork-with-"--foreground"
// re-exec sequence.
func runMount(c *cfg.Config) error {
	if !c.Foreground {
		return daemonizeSelf(c)
	}

	server, closeLog, err := buildServer(c)
	if err != nil {
		return err
	}
	defer closeLog()

	mfs, err := fuse.Mount(c.Dst, fuseutil.NewFileSystemServer(server), fuseMountConfig(c))
	if err != nil {
		mountErr := fmt.Errorf("mount: %w", err)
		if sigErr := daemonize.SignalOutcome(mountErr); sigErr != nil {
			fmt.Fprintf(os.Stderr, "daemonize.SignalOutcome: %v\n", sigErr)
		}
		return mountErr
	}

	if sigErr := daemonize.SignalOutcome(nil); sigErr != nil {
		fmt.Fprintf(os.Stderr, "daemonize.SignalOutcome: %v\n", sigErr)
	}

	server.StartStatsTicker(30 * time.Second)
	return mfs.Join(context.Background())
}

// daemonizeSelf re-execs the current binary with --foreground prepended
// to its arguments,
// waiting for it to either mount successfully or report an error back
// over the daemonize pipe, exactly as the teacher's cmd does.
func daemonizeSelf(c *cfg.Config) error {
	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)
	env := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}

	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	return nil
}
