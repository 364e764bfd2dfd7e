// Package match defines the ranking oracle consumed by the session
// coordinator and provides the default fuzzy implementation.
package match

import (
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/runger/heats/internal/item"
)

// Oracle orders a mutable item set against a query. The coordinator treats
// the ordering as opaque.
type Oracle interface {
	// SetItems replaces the candidate set.
	SetItems(items []item.DisplayItem)
	// Rank returns the items matching query, best first, at most limit
	// (limit <= 0 means no limit). An empty query returns the full set in
	// insertion order.
	Rank(query string, limit int) []item.DisplayItem
}

// Fuzzy is the default Oracle, backed by sahilm/fuzzy matching over item
// titles, with selection-count boosts breaking score ties (frecency).
type Fuzzy struct {
	mu     sync.Mutex
	items  []item.DisplayItem
	boosts map[string]int
}

// NewFuzzy creates an empty Fuzzy oracle.
func NewFuzzy() *Fuzzy {
	return &Fuzzy{}
}

// SetItems implements Oracle.
func (f *Fuzzy) SetItems(items []item.DisplayItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]item.DisplayItem(nil), items...)
}

// SetBoosts installs per-title selection counts used to break ties between
// equally scored matches. Titles not present count as zero.
func (f *Fuzzy) SetBoosts(counts map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boosts = counts
}

type titleSource []item.DisplayItem

func (s titleSource) String(i int) string { return s[i].Title }
func (s titleSource) Len() int            { return len(s) }

// Rank implements Oracle.
func (f *Fuzzy) Rank(query string, limit int) []item.DisplayItem {
	f.mu.Lock()
	items := f.items
	boosts := f.boosts
	f.mu.Unlock()

	if query == "" {
		out := append([]item.DisplayItem(nil), items...)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out
	}

	matches := fuzzy.FindFrom(query, titleSource(items))
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return boosts[items[matches[i].Index].Title] > boosts[items[matches[j].Index].Title]
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]item.DisplayItem, len(matches))
	for i, m := range matches {
		out[i] = items[m.Index]
	}
	return out
}
