// Package evaluate debounces query-reactive evaluator execution using a
// generation counter, so out-of-order completions of superseded queries can
// never overwrite newer results.
package evaluate

import (
	"context"
	"sync"
	"time"

	"github.com/runger/heats/internal/item"
)

// DebounceDelay is the quiescence window after a query change before the
// evaluators run.
const DebounceDelay = 100 * time.Millisecond

// RunFunc executes the active evaluators for a query and returns their
// combined items. Satisfied by command.Runner.Evaluate with the evaluator
// list bound.
type RunFunc func(ctx context.Context, query string) []item.LoadedItem

// Result is an evaluator result tagged with the generation that produced
// it. It is only applied when the generation is still current.
type Result struct {
	Generation uint64
	Items      []item.LoadedItem
}

// Debouncer issues a new generation per query change and delivers
// generation-tagged results on Results. There is no hard cancellation of
// in-flight work; stale results are discarded at apply time.
type Debouncer struct {
	run   RunFunc
	delay time.Duration

	mu         sync.Mutex
	generation uint64

	// Results delivers tagged evaluator output. The consumer must check
	// Accept before applying.
	Results chan Result
}

// New creates a Debouncer. A non-positive delay falls back to
// DebounceDelay.
func New(run RunFunc, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &Debouncer{
		run:     run,
		delay:   delay,
		Results: make(chan Result, 4),
	}
}

// QueryChanged bumps the generation and schedules an evaluator run after
// the quiescence delay. The returned generation identifies the scheduled
// run.
func (d *Debouncer) QueryChanged(ctx context.Context, query string) uint64 {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	time.AfterFunc(d.delay, func() {
		if d.Current() != gen {
			// Already superseded during the quiescence window; skip the
			// subprocess spawn entirely.
			return
		}
		items := d.run(ctx, query)
		select {
		case d.Results <- Result{Generation: gen, Items: items}:
		case <-ctx.Done():
		}
	})
	return gen
}

// Invalidate bumps the generation without scheduling a run, so every
// in-flight result is discarded on delivery. Used when a session is torn
// down or the query goes empty.
func (d *Debouncer) Invalidate() {
	d.mu.Lock()
	d.generation++
	d.mu.Unlock()
}

// Current returns the current generation.
func (d *Debouncer) Current() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Accept reports whether a result is still current and may be applied.
func (d *Debouncer) Accept(r Result) bool {
	return r.Generation == d.Current()
}
