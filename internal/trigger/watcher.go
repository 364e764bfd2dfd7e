// Package trigger turns writes to a runtime trigger file into mode
// activations. Hotkey daemons and scripts activate the launcher by writing
// a mode name to the file ("heats show <mode>" does exactly that), which
// keeps key grabbing outside the daemon entirely.
package trigger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is the fallback cadence when inotify is unavailable, e.g.
// on exotic filesystems for XDG_RUNTIME_DIR.
const pollInterval = 500 * time.Millisecond

// Watcher emits mode names written to the trigger file.
type Watcher struct {
	path   string
	logger *slog.Logger

	// Modes delivers one mode name per activation.
	Modes chan string
}

// NewWatcher creates a Watcher for the given trigger file path.
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:   path,
		logger: logger,
		Modes:  make(chan string, 4),
	}
}

// Run watches until ctx is cancelled. The file is truncated after each
// activation so the same mode can fire repeatedly.
func (w *Watcher) Run(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("inotify unavailable, polling trigger file", "error", err)
		w.poll(ctx)
		return
	}
	defer fw.Close()

	// Watch the directory: the file may not exist yet, and editors that
	// replace rather than rewrite would otherwise drop the watch.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("cannot watch runtime dir, polling trigger file", "dir", dir, "error", err)
		w.poll(ctx)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.fire(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("trigger watch error", "error", err)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.fire(ctx)
		}
	}
}

// fire reads a pending mode name and truncates the file. An empty or
// missing file means nothing is pending.
func (w *Watcher) fire(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	mode := strings.TrimSpace(string(data))
	if mode == "" {
		return
	}
	if err := os.Truncate(w.path, 0); err != nil {
		w.logger.Warn("truncating trigger file", "error", err)
	}
	select {
	case w.Modes <- mode:
	case <-ctx.Done():
	}
}

// Activate writes a mode name to the trigger file at path. Used by the
// client side.
func Activate(path, mode string) error {
	return os.WriteFile(path, []byte(mode+"\n"), 0o600)
}
