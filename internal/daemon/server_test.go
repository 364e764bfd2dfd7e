package daemon

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/heats/internal/config"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	return &config.Paths{
		ConfigDir:  filepath.Join(base, "config"),
		DataDir:    filepath.Join(base, "data"),
		CacheDir:   filepath.Join(base, "cache"),
		RuntimeDir: filepath.Join(base, "run"),
	}
}

func TestNewServerUsesDefaultsWithoutConfigFile(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, paths.EnsureDirectories())

	s, err := NewServer(Options{Paths: paths, Logger: slog.Default()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, paths.SocketFile(), s.socketPath())
	assert.NotNil(t, s.store, "history store should open")
}

func TestNewServerRejectsMalformedConfig(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, paths.EnsureDirectories())
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte("not = [toml"), 0o600))

	_, err := NewServer(Options{Paths: paths})
	assert.Error(t, err)
}

func TestServeBindsSocketAndStops(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, paths.EnsureDirectories())

	s, err := NewServer(Options{Paths: paths, Logger: slog.Default()})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", paths.SocketFile())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond, "socket never came up")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestSocketPathConfigOverride(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, paths.EnsureDirectories())
	custom := filepath.Join(t.TempDir(), "custom.sock")
	cfg := "[daemon]\nsocket_path = \"" + custom + "\"\n"
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte(cfg), 0o600))

	s, err := NewServer(Options{Paths: paths})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, custom, s.socketPath())
}

func TestReloadKeepsPreviousConfigOnError(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, paths.EnsureDirectories())

	s, err := NewServer(Options{Paths: paths})
	require.NoError(t, err)
	defer s.Close()
	before := s.socketPath()

	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte("broken = ["), 0o600))
	s.Reload()

	assert.Equal(t, before, s.socketPath())
}

func TestReadPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heats.pid")
	require.NoError(t, os.WriteFile(path, []byte("1234\n"), 0o600))

	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)

	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o600))
	_, err = ReadPIDFile(path)
	assert.Error(t, err)
}

func TestIsRunningFalseWhenNothingThere(t *testing.T) {
	assert.False(t, IsRunning(testPaths(t)))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "not running", Status(testPaths(t)))
}
