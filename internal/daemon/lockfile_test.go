//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFileAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heats.lock")
	lock := NewLockFile(path)

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLockFileSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heats.lock")
	first := NewLockFile(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewLockFile(path)
	err := second.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestLockFileRecoversFromDeadHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heats.lock")
	// A lock file without a live flock holder, as left by a crashed daemon.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o600))

	lock := NewLockFile(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()
}

func TestHeldPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heats.lock")

	_, held := HeldPID(path)
	assert.False(t, held, "missing file is not held")

	lock := NewLockFile(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	pid, held := HeldPID(path)
	assert.True(t, held)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock := NewLockFile(filepath.Join(t.TempDir(), "heats.lock"))
	assert.NoError(t, lock.Release())
}
