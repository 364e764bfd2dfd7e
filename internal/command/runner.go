// Package command spawns source, evaluator, and action processes and
// parses their JSONL output.
package command

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/item"
)

// DefaultTimeout bounds the whole spawn-write-read-wait cycle of a single
// source or evaluator command.
const DefaultTimeout = 2 * time.Second

// maxLineBytes caps a single JSONL output line. Anything longer is not a
// sane menu item.
const maxLineBytes = 1 << 20

// Runner executes external commands for providers and evaluators.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default and a
// zero timeout falls back to DefaultTimeout.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{logger: logger, timeout: timeout}
}

// Load runs the source commands of the named providers concurrently and
// returns the combined item set once every source has finished or timed
// out. A provider name missing from the config is logged and skipped.
// Items parsed before a timeout are kept.
func (r *Runner) Load(ctx context.Context, names []string, providers map[string]config.ProviderSpec) []item.LoadedItem {
	results := make([][]item.LoadedItem, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		spec, ok := providers[name]
		if !ok {
			r.logger.Warn("provider not found in config", "provider", name)
			continue
		}
		g.Go(func() error {
			items := r.runSource(ctx, spec.Source, "", false)
			loaded := make([]item.LoadedItem, 0, len(items))
			for _, mi := range items {
				loaded = append(loaded, item.Loaded(mi, name, name))
			}
			results[i] = loaded
			return nil
		})
	}
	_ = g.Wait()

	var all []item.LoadedItem
	for _, part := range results {
		all = append(all, part...)
	}
	return all
}

// Evaluate runs the named evaluators for the given query concurrently.
// Evaluator items are attributed to "eval:<name>" so they are
// distinguishable from provider items in the display.
func (r *Runner) Evaluate(ctx context.Context, query string, names []string, evaluators map[string]config.EvaluatorSpec) []item.LoadedItem {
	results := make([][]item.LoadedItem, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		spec, ok := evaluators[name]
		if !ok {
			r.logger.Warn("evaluator not found in config", "evaluator", name)
			continue
		}
		g.Go(func() error {
			argv := spec.Source
			useStdin := spec.Input != config.InputArg
			if !useStdin {
				argv = append(append(config.Command{}, argv...), query)
			}
			items := r.runSource(ctx, argv, query, useStdin)
			loaded := make([]item.LoadedItem, 0, len(items))
			for _, mi := range items {
				loaded = append(loaded, item.Loaded(mi, name, "eval:"+name))
			}
			results[i] = loaded
			return nil
		})
	}
	_ = g.Wait()

	var all []item.LoadedItem
	for _, part := range results {
		all = append(all, part...)
	}
	return all
}

// runSource spawns a single command, optionally feeds it stdin, and parses
// JSONL lines from stdout until EOF or timeout. On timeout the process
// group is terminated and the lines parsed so far are returned.
func (r *Runner) runSource(ctx context.Context, argv config.Command, stdin string, useStdin bool) []item.MenuItem {
	if len(argv) == 0 {
		r.logger.Warn("empty source command")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.Command(Resolve(argv[0]), argv[1:]...)
	setProcessGroup(cmd)
	if useStdin {
		cmd.Stdin = strings.NewReader(stdin + "\n")
	}
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.logger.Warn("stdout pipe failed", "command", argv[0], "error", err)
		return nil
	}
	if err := cmd.Start(); err != nil {
		r.logger.Warn("failed to spawn source command", "command", argv[0], "error", err)
		return nil
	}

	var items []item.MenuItem
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			mi, err := item.Parse([]byte(line))
			if err != nil {
				r.logger.Debug("dropping malformed item line",
					"command", argv[0], "error", err)
				continue
			}
			items = append(items, mi)
		}
	}()

	select {
	case <-done:
		if err := cmd.Wait(); err != nil {
			r.logger.Warn("source command failed", "command", argv[0], "error", err)
		}
	case <-ctx.Done():
		r.logger.Warn("source command timed out", "command", argv[0], "timeout", r.timeout)
		terminate(cmd)
		<-done
		_ = cmd.Wait()
	}
	return items
}

// RunAction spawns the action command detached, passing value either as a
// trailing argument or on stdin per mode. Failures are logged, never
// surfaced: selection must not block on the action's outcome.
func (r *Runner) RunAction(argv config.Command, mode config.InputMode, value string) {
	if len(argv) == 0 {
		r.logger.Error("empty action command")
		return
	}

	args := append([]string(nil), argv[1:]...)
	var stdin *strings.Reader
	if mode == config.InputArg {
		args = append(args, value)
	} else {
		stdin = strings.NewReader(value + "\n")
	}

	program := Resolve(argv[0])
	cmd := exec.Command(program, args...)
	setProcessGroup(cmd)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	r.logger.Info("running action", "command", program, "args", args)
	if err := cmd.Start(); err != nil {
		r.logger.Error("failed to run action", "command", program, "error", err)
		return
	}
	// Reap in the background so the child never lingers as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Warn("action exited with error", "command", program, "error", err)
		}
	}()
}

// Resolve maps a command name to the path to execute: absolute paths pass
// through; otherwise a sibling of the running executable wins over PATH
// lookup, so the bundled provider commands work without installation.
func Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}
