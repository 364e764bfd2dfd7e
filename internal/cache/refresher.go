package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/item"
)

// Loader loads the named providers and returns their combined item set.
// Satisfied by command.Runner.Load.
type Loader func(ctx context.Context, names []string, providers map[string]config.ProviderSpec) []item.LoadedItem

// Refresher reloads stale cached providers in the background
// (stale-while-revalidate: displayed items are never blocked on a refresh,
// the new entry is swapped in when ready).
type Refresher struct {
	cache     *Cache
	load      Loader
	providers map[string]config.ProviderSpec
	logger    *slog.Logger

	// Updates receives the provider name after each completed refresh so
	// the coordinator can re-merge visible items.
	Updates chan string
}

// NewRefresher creates a Refresher over the providers that have a cache
// interval configured.
func NewRefresher(c *Cache, load Loader, providers map[string]config.ProviderSpec, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	cached := make(map[string]config.ProviderSpec)
	for name, p := range providers {
		if p.CacheInterval.Std() > 0 {
			cached[name] = p
		}
	}
	return &Refresher{
		cache:     c,
		load:      load,
		providers: cached,
		logger:    logger,
		Updates:   make(chan string, 16),
	}
}

// Run warms every cached provider, then ticks at the minimum configured
// interval and reloads whichever providers have gone stale. Each reload is
// independent; a slow provider does not hold up the others. Run returns
// when ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if len(r.providers) == 0 {
		return
	}

	min := time.Duration(0)
	for _, p := range r.providers {
		if iv := p.CacheInterval.Std(); min == 0 || iv < min {
			min = iv
		}
	}

	for name := range r.providers {
		go r.refresh(ctx, name)
	}

	ticker := time.NewTicker(min)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for name, p := range r.providers {
				if r.cache.IsStale(name, p.CacheInterval.Std(), now) {
					go r.refresh(ctx, name)
				}
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, name string) {
	items := r.load(ctx, []string{name}, r.providers)
	if ctx.Err() != nil {
		return
	}
	r.cache.Put(name, items)
	r.logger.Debug("cache refreshed", "provider", name, "items", len(items))

	select {
	case r.Updates <- name:
	default:
		// The coordinator rereads the cache on session start anyway; a
		// dropped notification only delays a live re-merge.
	}
}
