// Package ui renders sessions in the terminal. The daemon core never
// renders; it pushes results into a Surface and receives user events back,
// so this package is the only one that knows about terminals at all.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runger/heats/internal/item"
)

// Events is the coordinator surface the TUI drives. Implementations must
// tolerate calls after the session already ended.
type Events interface {
	QueryChanged(ctx context.Context, query string)
	Commit(ctx context.Context, index int)
	Dismiss()
}

// Messages pushed into the running program by the Surface methods.
type (
	showMsg    struct{}
	hideMsg    struct{}
	resultsMsg struct{ items []item.DisplayItem }
)

// TUI is a Surface backed by a Bubble Tea program running in the daemon's
// terminal. It stays alive across sessions; Hide blanks it rather than
// quitting.
type TUI struct {
	program *tea.Program
}

// NewTUI creates the terminal surface. events receives user actions; ctx
// bounds the actions a selection may spawn.
func NewTUI(ctx context.Context, events Events) *TUI {
	m := newModel(ctx, events)
	return &TUI{program: tea.NewProgram(m)}
}

// Run blocks until the program exits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.program.Quit()
	}()
	_, err := t.program.Run()
	return err
}

// Show implements session.Surface.
func (t *TUI) Show() { t.program.Send(showMsg{}) }

// SetResults implements session.Surface.
func (t *TUI) SetResults(results []item.DisplayItem) {
	t.program.Send(resultsMsg{items: results})
}

// Hide implements session.Surface.
func (t *TUI) Hide() { t.program.Send(hideMsg{}) }

type model struct {
	ctx    context.Context
	events Events

	visible   bool
	items     []item.DisplayItem
	selection int
	input     textinput.Model

	width  int
	height int
}

func newModel(ctx context.Context, events Events) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "type to filter"
	return model{ctx: ctx, events: events, selection: -1, input: input}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd { return nil }

// Update implements tea.Model. Coordinator calls run as commands so the
// update loop never blocks on the session lock while the coordinator is
// pushing results back in.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case showMsg:
		m.visible = true
		m.items = nil
		m.selection = -1
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case hideMsg:
		m.visible = false
		m.items = nil
		m.selection = -1
		m.input.Blur()
		return m, nil

	case resultsMsg:
		m.items = msg.items
		m.clampSelection()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Sequence(m.dispatch(func(e Events) { e.Dismiss() }), tea.Quit)
	}
	if !m.visible {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		return m, m.dispatch(func(e Events) { e.Dismiss() })

	case tea.KeyEnter:
		if m.selection < 0 {
			return m, m.dispatch(func(e Events) { e.Dismiss() })
		}
		idx := m.selection
		return m, m.dispatch(func(e Events) { e.Commit(m.ctx, idx) })

	case tea.KeyUp, tea.KeyCtrlP:
		if m.selection > 0 {
			m.selection--
		}
		return m, nil

	case tea.KeyDown, tea.KeyCtrlN:
		if m.selection < len(m.items)-1 {
			m.selection++
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != before {
		return m, tea.Batch(cmd, m.dispatch(func(e Events) { e.QueryChanged(m.ctx, q) }))
	}
	return m, cmd
}

// dispatch runs an event callback off the update loop.
func (m model) dispatch(fn func(Events)) tea.Cmd {
	events := m.events
	return func() tea.Msg {
		fn(events)
		return nil
	}
}

func (m *model) clampSelection() {
	if len(m.items) == 0 {
		m.selection = -1
		return
	}
	if m.selection < 0 {
		m.selection = 0
	}
	if m.selection >= len(m.items) {
		m.selection = len(m.items) - 1
	}
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// View implements tea.Model.
func (m model) View() string {
	if !m.visible {
		return idleStyle.Render("heats: waiting for a trigger")
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')

	max := m.listHeight()
	for i, it := range m.items {
		if i >= max {
			b.WriteString(subtitleStyle.Render(fmt.Sprintf("  … %d more", len(m.items)-max)))
			break
		}
		b.WriteString(m.renderItem(it, i == m.selection))
		b.WriteRune('\n')
	}
	if len(m.items) == 0 {
		b.WriteString(subtitleStyle.Render("  no matches"))
	}
	return b.String()
}

func (m model) renderItem(it item.DisplayItem, selected bool) string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	title := Truncate(Clean(it.Title), width-4)
	var line string
	if selected {
		line = selectedStyle.Render("> " + title)
	} else {
		line = normalStyle.Render("  " + title)
	}
	if it.Subtitle != "" {
		line += " " + subtitleStyle.Render(Truncate(Clean(it.Subtitle), width/3))
	}
	if it.SourceName != "" {
		line += " " + sourceStyle.Render("["+it.SourceName+"]")
	}
	return line
}

func (m model) listHeight() int {
	const chrome = 2 // input line plus overflow note
	h := m.height - chrome
	if h < 1 {
		h = 20
	}
	return h
}
