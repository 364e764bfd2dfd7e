//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// LockFile prevents a second daemon instance from starting, using
// flock(2) with LOCK_EX|LOCK_NB. The holder's PID is written into the file
// for diagnostics and for stale-lock recovery.
type LockFile struct {
	file *os.File
	path string
}

// NewLockFile creates a LockFile at path. The lock is not acquired until
// Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// Acquire takes the exclusive lock, recovering from a lock file left by a
// dead process. It fails when a live daemon holds the lock.
func (l *LockFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			f.Close()
			return fmt.Errorf("locking %s: %w", l.path, err)
		}

		holder := readPID(f)
		f.Close()

		if holder > 0 && !processAlive(holder) {
			// The holder died without releasing; take over.
			os.Remove(l.path)
			return l.retry()
		}
		if holder > 0 {
			return fmt.Errorf("daemon already running (pid %d)", holder)
		}
		return fmt.Errorf("locking %s: %w", l.path, err)
	}

	if err := l.writePID(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// retry re-acquires once after removing a stale lock file.
func (l *LockFile) retry() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("reopening lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("locking %s after stale cleanup: %w", l.path, err)
	}
	if err := l.writePID(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

func (l *LockFile) writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("writing pid: %w", err)
	}
	return f.Sync()
}

// Release unlocks and removes the lock file.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing lock file: %w", err)
	}
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// HeldPID returns the PID recorded in lockPath if another process currently
// holds the lock.
func HeldPID(lockPath string) (pid int, held bool) {
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return 0, false
	} else if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
		return 0, false
	}
	return readPID(f), true
}

func readPID(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return pid
}

// processAlive checks for a live process via signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
