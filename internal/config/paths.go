// Package config loads the heats configuration file and resolves the
// on-disk paths the daemon and clients share.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the directory layout used by heatsd and the heats client.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/heats)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/heats)
	DataDir string

	// CacheDir is the directory for cache files (~/.cache/heats)
	CacheDir string

	// RuntimeDir is the directory for runtime files like the socket,
	// PID file, and trigger file
	RuntimeDir string
}

// DefaultPaths returns the default paths based on the XDG Base Directory
// spec.
func DefaultPaths() *Paths {
	home := homeDir()

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), fmt.Sprintf("heats-%d", os.Getuid()))
	} else {
		runtimeDir = filepath.Join(runtimeDir, "heats")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "heats"),
		DataDir:    filepath.Join(dataHome, "heats"),
		CacheDir:   filepath.Join(cacheHome, "heats"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.toml")
}

// SocketFile returns the path to the Unix domain socket.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.RuntimeDir, "heats.sock")
}

// PIDFile returns the path to the daemon PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.RuntimeDir, "heats.pid")
}

// LockFile returns the path to the daemon lock file.
func (p *Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "heats.lock")
}

// TriggerFile returns the path to the mode trigger file. External hotkey
// bindings write a mode name here to open an internal session.
func (p *Paths) TriggerFile() string {
	return filepath.Join(p.RuntimeDir, "trigger")
}

// DatabaseFile returns the path to the selection history database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "history.db")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.CacheDir,
		p.LogDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	// Runtime files are private to the user.
	return os.MkdirAll(p.RuntimeDir, 0700)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}
