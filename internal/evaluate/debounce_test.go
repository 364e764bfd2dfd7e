package evaluate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/runger/heats/internal/item"
)

func items(title string) []item.LoadedItem {
	return []item.LoadedItem{{Display: item.DisplayItem{Title: title}}}
}

func TestDebounceRunsAfterQuiescence(t *testing.T) {
	t.Parallel()

	d := New(func(ctx context.Context, query string) []item.LoadedItem {
		return items("result for " + query)
	}, 20*time.Millisecond)

	gen := d.QueryChanged(context.Background(), "1+1")

	select {
	case res := <-d.Results:
		if res.Generation != gen {
			t.Errorf("generation = %d, want %d", res.Generation, gen)
		}
		if !d.Accept(res) {
			t.Error("current result must be accepted")
		}
		if res.Items[0].Display.Title != "result for 1+1" {
			t.Errorf("items = %v", res.Items)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("evaluator never ran")
	}
}

func TestDebounceSupersededRunIsSkipped(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var queries []string
	d := New(func(ctx context.Context, query string) []item.LoadedItem {
		mu.Lock()
		queries = append(queries, query)
		mu.Unlock()
		return items(query)
	}, 50*time.Millisecond)

	ctx := context.Background()
	d.QueryChanged(ctx, "1")
	d.QueryChanged(ctx, "12")
	last := d.QueryChanged(ctx, "123")

	select {
	case res := <-d.Results:
		if res.Generation != last {
			t.Errorf("generation = %d, want %d", res.Generation, last)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("final evaluator never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 || queries[0] != "123" {
		t.Errorf("ran queries %v, want only the final one", queries)
	}
}

func TestDebounceMonotonicity(t *testing.T) {
	t.Parallel()

	// Simulate out-of-order completion: g1's result arrives after g2 is
	// already current. It must be rejected, and g2's result applied.
	d := New(nil, time.Millisecond)

	d.Invalidate() // g1
	g1 := d.Current()
	d.Invalidate() // g2
	g2 := d.Current()

	stale := Result{Generation: g1, Items: items("old")}
	fresh := Result{Generation: g2, Items: items("new")}

	if d.Accept(stale) {
		t.Error("stale generation must be discarded")
	}
	if !d.Accept(fresh) {
		t.Error("current generation must be accepted")
	}
}

func TestInvalidateDiscardsInFlight(t *testing.T) {
	t.Parallel()

	d := New(func(ctx context.Context, query string) []item.LoadedItem {
		return items(query)
	}, 10*time.Millisecond)

	d.QueryChanged(context.Background(), "abc")
	d.Invalidate()

	select {
	case res := <-d.Results:
		// The run may still have fired before Invalidate; either way its
		// result must not be applicable.
		if d.Accept(res) {
			t.Error("result after Invalidate must not be accepted")
		}
	case <-time.After(200 * time.Millisecond):
		// Run was skipped entirely, also correct.
	}
}
