// Package daemon runs the heats launcher daemon: it owns startup and
// shutdown, single-instance locking, signal handling, and the wiring
// between the provider cache, the session coordinator, and the IPC socket.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/runger/heats/internal/config"
)

// Run starts the daemon and blocks until shutdown. Signals:
//   - SIGTERM/SIGINT: graceful shutdown
//   - SIGHUP: reload configuration
//   - SIGPIPE: ignored, provider pipes break routinely
func Run(ctx context.Context, opts Options) error {
	if os.Geteuid() == 0 {
		return fmt.Errorf("refusing to run as root: heatsd executes user-configured commands")
	}
	if opts.Paths == nil {
		opts.Paths = config.DefaultPaths()
	}
	paths := opts.Paths
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}

	lock := NewLockFile(paths.LockFile())
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	if err := writePIDFile(paths.PIDFile()); err != nil {
		return err
	}
	defer os.Remove(paths.PIDFile())

	server, err := NewServer(opts)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signal.Ignore(syscall.SIGPIPE)
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigs)

	go func() {
		for {
			select {
			case sig := <-sigs:
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					server.logger.Info("shutting down", "signal", sig.String())
					cancel()
					return
				case syscall.SIGHUP:
					server.Reload()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return server.Serve(ctx)
}

func writePIDFile(path string) error {
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the PID recorded at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}

// IsRunning reports whether a daemon is alive, preferring the PID file and
// falling back to the lock holder when the PID file is stale.
func IsRunning(paths *config.Paths) bool {
	if pid, err := ReadPIDFile(paths.PIDFile()); err == nil && pid > 0 && processAlive(pid) {
		return true
	}
	pid, held := HeldPID(paths.LockFile())
	return held && pid > 0 && processAlive(pid)
}

// Stop signals the running daemon with SIGTERM and waits for it to exit,
// escalating to SIGKILL after ten seconds.
func Stop(paths *config.Paths) error {
	pid, err := ReadPIDFile(paths.PIDFile())
	if err != nil || pid <= 0 || !processAlive(pid) {
		lockPID, held := HeldPID(paths.LockFile())
		if !held || lockPID <= 0 {
			return fmt.Errorf("daemon not running")
		}
		pid = lockPID
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling daemon: %w", err)
	}

	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			proc.Kill()
			return nil
		case <-ticker.C:
			if !processAlive(pid) {
				return nil
			}
		}
	}
}
