// Package session owns the launcher's visible state: which items are
// current, which session (internal or external) is active, and how a
// selection or cancellation resolves.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/runger/heats/internal/cache"
	"github.com/runger/heats/internal/command"
	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/evaluate"
	"github.com/runger/heats/internal/item"
	"github.com/runger/heats/internal/match"
	"github.com/runger/heats/internal/storage"
)

// maxResults caps ranked provider results for a non-empty query.
const maxResults = 50

// Surface is the display collaborator. The coordinator never renders; it
// pushes the current ordered item set and visibility, and the surface feeds
// user events back through QueryChanged, Commit, and Dismiss. Surface
// methods must not block.
type Surface interface {
	Show()
	SetResults(results []item.DisplayItem)
	Hide()
}

// NopSurface is a Surface that does nothing, for headless operation.
type NopSurface struct{}

func (NopSurface) Show()                         {}
func (NopSurface) SetResults([]item.DisplayItem) {}
func (NopSurface) Hide()                         {}

// Recorder persists committed selections. Satisfied by *storage.Store.
type Recorder interface {
	RecordSelection(ctx context.Context, sel storage.Selection) error
}

// ReplyFunc delivers an external session's outcome: the selected item, or
// nil for cancellation. The coordinator calls it exactly once per session.
// It must not block.
type ReplyFunc func(selected *item.DisplayItem)

type phase int

const (
	phaseIdle phase = iota
	phaseInternal
	phaseExternal
)

// Coordinator is the session state machine. All mutable session state is
// behind its mutex; the lock is never held across process or socket I/O.
type Coordinator struct {
	runner  *command.Runner
	cache   *cache.Cache
	oracle  match.Oracle
	deb     *evaluate.Debouncer
	surface Surface
	history Recorder
	logger  *slog.Logger

	mu  sync.Mutex
	cfg *config.Config

	phase       phase
	query       string
	loaded      []item.LoadedItem // provider items of the internal session
	external    []item.LoadedItem // items of the external session
	evalItems   []item.LoadedItem // always displayed ahead of results
	results     []item.DisplayItem
	activeEvals []string
	reply       ReplyFunc // one-shot slot, taken on first resolution
	loadSeq     uint64    // discriminates async loads across sessions
}

// Options configures a Coordinator.
type Options struct {
	Config  *config.Config
	Runner  *command.Runner
	Cache   *cache.Cache
	Oracle  match.Oracle
	Surface Surface
	History Recorder // optional
	Logger  *slog.Logger
}

// New creates a Coordinator in the Idle state.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Surface == nil {
		opts.Surface = NopSurface{}
	}
	if opts.Oracle == nil {
		opts.Oracle = match.NewFuzzy()
	}
	c := &Coordinator{
		runner:  opts.Runner,
		cache:   opts.Cache,
		oracle:  opts.Oracle,
		surface: opts.Surface,
		history: opts.History,
		logger:  opts.Logger,
		cfg:     opts.Config,
	}
	c.deb = evaluate.New(c.runEvaluators, evaluate.DebounceDelay)
	return c
}

// SetConfig swaps the configuration, used for live reload. Active sessions
// keep the provider/evaluator specs they started with.
func (c *Coordinator) SetConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// SetSurface attaches the display surface. The surface and the coordinator
// reference each other, so one of them has to be bound after construction.
func (c *Coordinator) SetSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		s = NopSurface{}
	}
	c.surface = s
}

// Run pumps debouncer results and cache refresh notifications into the
// state machine until ctx is cancelled, then tears down any active session
// so an external client never hangs on daemon shutdown.
func (c *Coordinator) Run(ctx context.Context, updates <-chan string) {
	for {
		select {
		case <-ctx.Done():
			c.Dismiss()
			return
		case res := <-c.deb.Results:
			c.applyEvalResult(res)
		case name, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.cacheUpdated(name)
		}
	}
}

// ShowMode starts (or toggles off) an internal session for the named mode.
// Cached providers are shown immediately; the rest load asynchronously and
// merge in when ready.
func (c *Coordinator) ShowMode(ctx context.Context, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == phaseInternal {
		// Trigger while showing toggles the launcher away.
		c.dismissLocked()
		return
	}
	c.teardownLocked()

	mode, ok := c.cfg.ModeByName(name)
	if !ok {
		c.logger.Warn("mode not found in config", "mode", name)
		return
	}
	if len(mode.Providers) == 0 {
		c.logger.Warn("mode has no providers", "mode", name)
		return
	}

	c.phase = phaseInternal
	c.activeEvals = append([]string(nil), mode.Evaluators...)

	var cached []item.LoadedItem
	var uncached []string
	for _, p := range mode.Providers {
		if items, ok := c.cache.Get(p); ok {
			cached = append(cached, items...)
		} else {
			uncached = append(uncached, p)
		}
	}

	c.loaded = cached
	c.rerankLocked()
	c.surface.Show()

	if len(uncached) > 0 {
		seq := c.loadSeq
		providers := c.cfg.Provider
		go func() {
			items := c.runner.Load(ctx, uncached, providers)
			c.itemsLoaded(seq, items)
		}()
	}
}

// itemsLoaded merges an asynchronous provider load into the current
// session. Results from a superseded session are dropped.
func (c *Coordinator) itemsLoaded(seq uint64, items []item.LoadedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != phaseInternal || seq != c.loadSeq {
		c.logger.Debug("dropping load result for superseded session")
		return
	}
	// Replace when nothing was pre-populated from the cache, append
	// otherwise.
	if len(c.loaded) == 0 {
		c.loaded = items
	} else {
		c.loaded = append(c.loaded, items...)
	}
	c.rerankLocked()
}

// StartExternal begins an external session over the given items,
// pre-empting whatever is active. reply is resolved exactly once.
func (c *Coordinator) StartExternal(items []item.LoadedItem, reply ReplyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	c.phase = phaseExternal
	c.external = items
	c.reply = reply
	c.rerankLocked()
	c.surface.Show()
}

// QueryChanged updates the live query: re-ranks the current item set and,
// for internal sessions with evaluators, schedules a debounced evaluator
// run.
func (c *Coordinator) QueryChanged(ctx context.Context, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == phaseIdle {
		return
	}
	c.query = query

	if c.phase == phaseInternal && len(c.activeEvals) > 0 && query != "" {
		c.deb.QueryChanged(ctx, query)
	} else {
		c.evalItems = nil
		c.deb.Invalidate()
	}
	c.rerankLocked()
}

// runEvaluators is the debouncer's RunFunc. It snapshots the active
// evaluator list without holding the lock across subprocess execution.
func (c *Coordinator) runEvaluators(ctx context.Context, query string) []item.LoadedItem {
	c.mu.Lock()
	names := append([]string(nil), c.activeEvals...)
	evaluators := c.cfg.Evaluator
	c.mu.Unlock()

	if len(names) == 0 {
		return nil
	}
	return c.runner.Evaluate(ctx, query, names, evaluators)
}

func (c *Coordinator) applyEvalResult(res evaluate.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.deb.Accept(res) {
		c.logger.Debug("discarding stale evaluator result", "generation", res.Generation)
		return
	}
	if c.phase != phaseInternal {
		return
	}
	c.evalItems = res.Items
	c.pushLocked()
}

// cacheUpdated re-merges a freshly refreshed provider into the visible set
// of an active internal session.
func (c *Coordinator) cacheUpdated(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != phaseInternal {
		return
	}
	items, ok := c.cache.Get(name)
	if !ok {
		return
	}
	replaced := false
	kept := c.loaded[:0]
	for _, li := range c.loaded {
		if li.Provider == name {
			replaced = true
			continue
		}
		kept = append(kept, li)
	}
	if !replaced {
		// Provider is not part of this session's item set.
		return
	}
	c.loaded = append(kept, items...)
	c.rerankLocked()
}

// Commit resolves the selection at the given display index. Evaluator
// results occupy the leading indices; only an index past them maps into the
// ranked provider results.
func (c *Coordinator) Commit(ctx context.Context, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case phaseIdle:
		return

	case phaseExternal:
		if index < 0 || index >= len(c.results) {
			c.dismissLocked()
			return
		}
		sel := c.results[index]
		c.recordLocked(ctx, "external", sel, sel.ExecPath)
		c.resolveReplyLocked(&sel)
		c.dismissLocked()

	case phaseInternal:
		if index < len(c.evalItems) {
			if index >= 0 {
				c.commitEvaluatorLocked(ctx, c.evalItems[index])
			}
			c.dismissLocked()
			return
		}
		adjusted := index - len(c.evalItems)
		if adjusted >= len(c.results) {
			c.dismissLocked()
			return
		}
		c.commitProviderLocked(ctx, c.results[adjusted])
		c.dismissLocked()
	}
}

func (c *Coordinator) commitEvaluatorLocked(ctx context.Context, li item.LoadedItem) {
	spec, ok := c.cfg.Evaluator[li.Provider]
	if !ok {
		c.logger.Warn("evaluator vanished from config", "evaluator", li.Provider)
		return
	}
	value := li.Item.Field(fieldOrDefault(spec.Field))
	c.recordLocked(ctx, "internal", li.Display, value)
	c.runner.RunAction(spec.Action, spec.ActionInput, value)
}

func (c *Coordinator) commitProviderLocked(ctx context.Context, sel item.DisplayItem) {
	li, ok := c.findLoadedLocked(sel)
	if !ok {
		c.logger.Warn("selected item has no loaded backing", "title", sel.Title)
		return
	}
	spec, ok := c.cfg.Provider[li.Provider]
	if !ok {
		c.logger.Warn("provider vanished from config", "provider", li.Provider)
		return
	}
	value := li.Item.Field(fieldOrDefault(spec.Field))
	c.recordLocked(ctx, "internal", li.Display, value)
	c.runner.RunAction(spec.Action, config.InputArg, value)
}

// findLoadedLocked maps a ranked DisplayItem back to its LoadedItem.
func (c *Coordinator) findLoadedLocked(sel item.DisplayItem) (item.LoadedItem, bool) {
	for _, li := range c.loaded {
		d := li.Display
		if d.Title == sel.Title && d.SourceName == sel.SourceName && d.ExecPath == sel.ExecPath {
			return li, true
		}
	}
	return item.LoadedItem{}, false
}

func (c *Coordinator) recordLocked(ctx context.Context, kind string, sel item.DisplayItem, value string) {
	if c.history == nil {
		return
	}
	entry := storage.Selection{
		Kind:   kind,
		Source: sel.SourceName,
		Title:  sel.Title,
		Value:  value,
	}
	go func() {
		if err := c.history.RecordSelection(ctx, entry); err != nil {
			c.logger.Warn("failed to record selection", "error", err)
		}
	}()
}

// Dismiss cancels the active session, resolving an external reply channel
// with "cancelled" if one is pending.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissLocked()
}

// teardownLocked resolves and clears an existing session without touching
// the surface, as a new session is about to take over.
func (c *Coordinator) teardownLocked() {
	c.resolveReplyLocked(nil)
	c.clearLocked()
}

func (c *Coordinator) dismissLocked() {
	c.resolveReplyLocked(nil)
	c.clearLocked()
	c.surface.Hide()
}

// resolveReplyLocked delivers the external reply exactly once: the slot is
// taken before the call so a competing path can never deliver twice.
func (c *Coordinator) resolveReplyLocked(sel *item.DisplayItem) {
	if c.reply == nil {
		return
	}
	reply := c.reply
	c.reply = nil
	reply(sel)
}

// clearLocked drops all transient session state. The background provider
// cache deliberately survives.
func (c *Coordinator) clearLocked() {
	c.phase = phaseIdle
	c.query = ""
	c.loaded = nil
	c.external = nil
	c.evalItems = nil
	c.results = nil
	c.activeEvals = nil
	c.loadSeq++
	c.deb.Invalidate()
}

// rerankLocked feeds the current item set through the oracle and pushes
// the combined view to the surface.
func (c *Coordinator) rerankLocked() {
	var source []item.LoadedItem
	if c.phase == phaseExternal {
		source = c.external
	} else {
		source = c.loaded
	}
	c.oracle.SetItems(item.Displays(source))

	limit := 0
	if c.query != "" {
		limit = maxResults
	}
	c.results = c.oracle.Rank(c.query, limit)
	c.pushLocked()
}

// pushLocked sends evaluator items followed by ranked results to the
// surface.
func (c *Coordinator) pushLocked() {
	combined := make([]item.DisplayItem, 0, len(c.evalItems)+len(c.results))
	combined = append(combined, item.Displays(c.evalItems)...)
	combined = append(combined, c.results...)
	c.surface.SetResults(combined)
}

// Results returns the items currently presented, evaluator results first.
func (c *Coordinator) Results() []item.DisplayItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	combined := make([]item.DisplayItem, 0, len(c.evalItems)+len(c.results))
	combined = append(combined, item.Displays(c.evalItems)...)
	combined = append(combined, c.results...)
	return combined
}

// Active reports whether a session is currently showing.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != phaseIdle
}

func fieldOrDefault(f string) string {
	if f == "" {
		return config.DefaultField
	}
	return f
}
