package ui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/heats/internal/item"
)

// recorder captures dispatched events.
type recorder struct {
	mu        sync.Mutex
	queries   []string
	commits   []int
	dismisses int
}

func (r *recorder) QueryChanged(_ context.Context, q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *recorder) Commit(_ context.Context, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, index)
}

func (r *recorder) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismisses++
}

// drain executes a command tree synchronously so dispatched events land
// before assertions.
func drain(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(c)
		}
	}
}

func displayItems(titles ...string) []item.DisplayItem {
	out := make([]item.DisplayItem, len(titles))
	for i, t := range titles {
		out[i] = item.DisplayItem{Title: t}
	}
	return out
}

func shownModel(t *testing.T, rec *recorder, titles ...string) model {
	t.Helper()
	m := newModel(context.Background(), rec)
	updated, _ := m.Update(showMsg{})
	updated, _ = updated.Update(resultsMsg{items: displayItems(titles...)})
	mm, ok := updated.(model)
	require.True(t, ok)
	return mm
}

func TestShowResetsAndFocuses(t *testing.T) {
	m := shownModel(t, &recorder{}, "a", "b")
	assert.True(t, m.visible)
	assert.Equal(t, 0, m.selection)
	assert.Empty(t, m.input.Value())
}

func TestArrowKeysMoveSelection(t *testing.T) {
	m := shownModel(t, &recorder{}, "a", "b", "c")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(model)
	assert.Equal(t, 1, m.selection)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(model)
	assert.Equal(t, 0, m.selection)

	// Clamped at the top.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(model)
	assert.Equal(t, 0, m.selection)
}

func TestEnterCommitsSelection(t *testing.T) {
	rec := &recorder{}
	m := shownModel(t, rec, "a", "b")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(model)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(cmd)

	assert.Equal(t, []int{1}, rec.commits)
}

func TestEscDismisses(t *testing.T) {
	rec := &recorder{}
	m := shownModel(t, rec, "a")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(cmd)

	assert.Equal(t, 1, rec.dismisses)
}

func TestTypingDispatchesQueryChanged(t *testing.T) {
	rec := &recorder{}
	m := shownModel(t, rec, "a")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	drain(cmd)
	m = updated.(model)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	drain(cmd)

	assert.Equal(t, []string{"f", "fi"}, rec.queries)
}

func TestHiddenSurfaceIgnoresKeys(t *testing.T) {
	rec := &recorder{}
	m := newModel(context.Background(), rec)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(cmd)

	assert.Empty(t, rec.commits)
	assert.Zero(t, rec.dismisses)
}

func TestResultsClampSelection(t *testing.T) {
	m := shownModel(t, &recorder{}, "a", "b", "c")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(model)
	require.Equal(t, 2, m.selection)

	updated, _ = m.Update(resultsMsg{items: displayItems("only")})
	m = updated.(model)
	assert.Equal(t, 0, m.selection)

	updated, _ = m.Update(resultsMsg{items: nil})
	m = updated.(model)
	assert.Equal(t, -1, m.selection)
}

func TestHideBlanksView(t *testing.T) {
	m := shownModel(t, &recorder{}, "a")
	updated, _ := m.Update(hideMsg{})
	m = updated.(model)

	assert.False(t, m.visible)
	assert.Contains(t, m.View(), "waiting for a trigger")
}
