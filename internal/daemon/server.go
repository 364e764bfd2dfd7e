package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/runger/heats/internal/cache"
	"github.com/runger/heats/internal/command"
	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/ipc"
	"github.com/runger/heats/internal/match"
	"github.com/runger/heats/internal/session"
	"github.com/runger/heats/internal/storage"
	"github.com/runger/heats/internal/trigger"
	"github.com/runger/heats/internal/ui"
)

// maintenanceInterval paces history pruning and frecency boost reloads.
const maintenanceInterval = 10 * time.Minute

// Options configures the daemon.
type Options struct {
	Paths  *config.Paths
	Logger *slog.Logger
	// TUI renders sessions in the daemon's terminal. Without it the daemon
	// runs headless and only serves external sessions and actions.
	TUI bool
}

// Server wires the daemon's components together.
type Server struct {
	paths  *config.Paths
	logger *slog.Logger

	mu        sync.Mutex // guards cfg across reloads
	cfg       *config.Config
	runner    *command.Runner
	cache     *cache.Cache
	refresher *cache.Refresher
	oracle    *match.Fuzzy
	store     *storage.Store // nil when history is unavailable
	coord     *session.Coordinator
	ipc       *ipc.Server
	triggers  *trigger.Watcher
	tui       *ui.TUI // nil when headless
}

// NewServer loads configuration and constructs every component. History
// storage failing to open is not fatal; the launcher works without it.
func NewServer(opts Options) (*Server, error) {
	if opts.Paths == nil {
		opts.Paths = config.DefaultPaths()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{paths: opts.Paths, logger: opts.Logger}

	cfg, err := config.Load(opts.Paths.ConfigFile())
	if err != nil {
		return nil, err
	}
	s.cfg = cfg

	s.runner = command.NewRunner(s.logger, command.DefaultTimeout)
	s.cache = cache.New()
	s.refresher = cache.NewRefresher(s.cache, s.runner.Load, cfg.Provider, s.logger)
	s.oracle = match.NewFuzzy()

	store, err := storage.Open(opts.Paths.DatabaseFile())
	if err != nil {
		s.logger.Warn("selection history unavailable", "error", err)
	} else {
		s.store = store
	}

	coordOpts := session.Options{
		Config: cfg,
		Runner: s.runner,
		Cache:  s.cache,
		Oracle: s.oracle,
		Logger: s.logger,
	}
	if s.store != nil {
		coordOpts.History = s.store
	}
	s.coord = session.New(coordOpts)
	if opts.TUI {
		s.tui = ui.NewTUI(context.Background(), s.coord)
		s.coord.SetSurface(s.tui)
	}

	s.ipc = ipc.NewServer(s.socketPath(), s.coord, s.logger)
	s.triggers = trigger.NewWatcher(opts.Paths.TriggerFile(), s.logger)
	return s, nil
}

func (s *Server) socketPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Daemon.SocketPath != "" {
		return s.cfg.Daemon.SocketPath
	}
	return s.paths.SocketFile()
}

// Serve runs every component until ctx is cancelled. No component failure
// takes the daemon down; the errgroup exists for orderly shutdown.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.coord.Run(ctx, s.refresher.Updates)
		return nil
	})
	g.Go(func() error {
		s.refresher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.ipc.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.triggers.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.pumpTriggers(ctx)
		return nil
	})
	g.Go(func() error {
		s.watchConfig(ctx)
		return nil
	})
	g.Go(func() error {
		s.maintain(ctx)
		return nil
	})
	if s.tui != nil {
		g.Go(func() error {
			if err := s.tui.Run(ctx); err != nil {
				s.logger.Error("terminal surface failed", "error", err)
			}
			return nil
		})
	}

	s.mu.Lock()
	modes := len(s.cfg.Mode)
	s.mu.Unlock()
	s.logger.Info("daemon started",
		"socket", s.socketPath(),
		"trigger", s.paths.TriggerFile(),
		"modes", modes,
	)
	return g.Wait()
}

func (s *Server) pumpTriggers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case mode := <-s.triggers.Modes:
			s.logger.Info("activation", "mode", mode)
			s.coord.ShowMode(ctx, mode)
		}
	}
}

// Reload re-reads the config file. Mode and action changes apply to the
// next session; the background refresher keeps its original provider set
// until restart.
func (s *Server) Reload() {
	cfg, err := config.Load(s.paths.ConfigFile())
	if err != nil {
		s.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.coord.SetConfig(cfg)
	s.logger.Info("configuration reloaded", "modes", len(cfg.Mode))
}

// watchConfig reloads when the config file changes on disk, so edits apply
// without hunting for the daemon's PID. SIGHUP still works.
func (s *Server) watchConfig(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("config watch unavailable", "error", err)
		<-ctx.Done()
		return
	}
	defer fw.Close()

	path := s.paths.ConfigFile()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		s.logger.Warn("config watch unavailable", "dir", filepath.Dir(path), "error", err)
		<-ctx.Done()
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
			if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.Reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watch error", "error", err)
		}
	}
}

// maintain prunes old history rows and refreshes frecency boosts.
func (s *Server) maintain(ctx context.Context) {
	if s.store == nil {
		<-ctx.Done()
		return
	}
	s.reloadBoosts(ctx)

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.store.Prune(ctx); err != nil {
				s.logger.Warn("history prune failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("history pruned", "rows", n)
			}
			s.reloadBoosts(ctx)
		}
	}
}

func (s *Server) reloadBoosts(ctx context.Context) {
	counts, err := s.store.UsageCounts(ctx, "")
	if err != nil {
		s.logger.Warn("loading selection counts", "error", err)
		return
	}
	s.oracle.SetBoosts(counts)
}

// Close releases resources held outside Serve's context.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Status describes a running daemon for the status command.
func Status(paths *config.Paths) string {
	if paths == nil {
		paths = config.DefaultPaths()
	}
	if !IsRunning(paths) {
		return "not running"
	}
	pid, err := ReadPIDFile(paths.PIDFile())
	if err != nil {
		if lockPID, held := HeldPID(paths.LockFile()); held {
			pid = lockPID
		}
	}
	return fmt.Sprintf("running (pid %d, socket %s)", pid, paths.SocketFile())
}
