package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/item"
)

func li(title string) item.LoadedItem {
	return item.LoadedItem{Display: item.DisplayItem{Title: title}}
}

func TestGetPut(t *testing.T) {
	t.Parallel()

	c := New()
	if _, ok := c.Get("apps"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("apps", []item.LoadedItem{li("A")})
	items, ok := c.Get("apps")
	if !ok || len(items) != 1 || items[0].Display.Title != "A" {
		t.Fatalf("got %v, %v", items, ok)
	}

	// Whole-entry replacement, not append.
	c.Put("apps", []item.LoadedItem{li("B"), li("C")})
	items, _ = c.Get("apps")
	if len(items) != 2 || items[0].Display.Title != "B" {
		t.Fatalf("entry not replaced: %v", items)
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	c := New()
	now := time.Now()
	interval := time.Minute

	if !c.IsStale("apps", interval, now) {
		t.Error("missing entry must be stale")
	}

	c.PutAt("apps", nil, now)
	if c.IsStale("apps", interval, now.Add(interval-time.Nanosecond)) {
		t.Error("entry inside interval must be fresh")
	}
	// Exactly at the boundary counts as stale.
	if !c.IsStale("apps", interval, now.Add(interval)) {
		t.Error("entry at exact interval must be stale")
	}
	if !c.IsStale("apps", interval, now.Add(2*interval)) {
		t.Error("entry past interval must be stale")
	}
}

func TestRefresherWarmsAndNotifies(t *testing.T) {
	t.Parallel()

	c := New()
	var mu sync.Mutex
	loads := 0
	load := func(ctx context.Context, names []string, _ map[string]config.ProviderSpec) []item.LoadedItem {
		mu.Lock()
		loads++
		mu.Unlock()
		return []item.LoadedItem{li("from " + names[0])}
	}

	providers := map[string]config.ProviderSpec{
		"apps":     {CacheInterval: config.Duration(time.Hour)},
		"uncached": {},
	}
	r := NewRefresher(c, load, providers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	select {
	case name := <-r.Updates:
		if name != "apps" {
			t.Fatalf("updated %q, want apps", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warm load never completed")
	}

	items, ok := c.Get("apps")
	if !ok || len(items) != 1 {
		t.Fatalf("cache not populated: %v %v", items, ok)
	}
	if _, ok := c.Get("uncached"); ok {
		t.Error("uncached provider must not be warmed")
	}

	mu.Lock()
	defer mu.Unlock()
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
}

func TestRefresherReloadsWhenStale(t *testing.T) {
	t.Parallel()

	c := New()
	loaded := make(chan struct{}, 8)
	load := func(ctx context.Context, names []string, _ map[string]config.ProviderSpec) []item.LoadedItem {
		loaded <- struct{}{}
		return nil
	}

	providers := map[string]config.ProviderSpec{
		"apps": {CacheInterval: config.Duration(50 * time.Millisecond)},
	}
	r := NewRefresher(c, load, providers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Warm load plus at least one stale-triggered reload.
	for i := 0; i < 2; i++ {
		select {
		case <-loaded:
		case <-time.After(2 * time.Second):
			t.Fatalf("reload %d never happened", i)
		}
	}
}
