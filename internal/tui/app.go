// Package tui renders the archiver panel as an interactive terminal popup.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatarchiver/internal/domain"
	"chatarchiver/internal/panel"
)

type mode int

const (
	modeMain mode = iota
	modeInterval
)

// refreshEvery re-renders the view so expired status lines fall back to Ready.
const refreshEvery = time.Second

var formatCycle = []domain.FormatKind{domain.FormatText, domain.FormatMarkdown, domain.FormatJSON}

type (
	openedMsg  panel.View
	statusMsg  string
	refreshMsg time.Time
)

type Model struct {
	ctx      context.Context
	panel    *panel.Panel
	view     panel.View
	mode     mode
	input    textinput.Model
	busy     bool
	width    int
	quitting bool
}

func NewModel(ctx context.Context, p *panel.Panel) Model {
	in := textinput.New()
	in.Placeholder = "minutes"
	in.CharLimit = 4

	return Model{
		ctx:   ctx,
		panel: p,
		view:  p.View(),
		input: in,
		width: 60,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.open(), refresh())
}

func (m Model) open() tea.Cmd {
	return func() tea.Msg { return openedMsg(m.panel.Open(m.ctx)) }
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// run performs a panel action off the UI goroutine.
func (m Model) run(action func(ctx context.Context) string) tea.Cmd {
	return func() tea.Msg { return statusMsg(action(m.ctx)) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case openedMsg:
		m.view = panel.View(msg)
		return m, nil

	case statusMsg:
		m.busy = false
		m.view = m.panel.View()
		return m, nil

	case refreshMsg:
		if m.quitting {
			return m, nil
		}
		m.view = m.panel.View()
		return m, refresh()

	case tea.KeyMsg:
		if m.mode == modeInterval {
			return m.updateInterval(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "s", "enter":
		m.busy = true
		m.view.Status = panel.StatusSaving
		return m, m.run(m.panel.SaveNow)

	case "a", " ":
		enabled := !m.view.AutoSave
		m.busy = true
		return m, m.run(func(ctx context.Context) string { return m.panel.SetAutoSave(ctx, enabled) })

	case "f", "tab":
		next := nextFormat(m.view.Format)
		m.busy = true
		return m, m.run(func(ctx context.Context) string { return m.panel.SetFormat(ctx, next) })

	case "+", "=":
		return m.setInterval(m.view.IntervalMinutes + 1)

	case "-":
		return m.setInterval(m.view.IntervalMinutes - 1)

	case "i":
		m.input.SetValue(strconv.Itoa(m.view.IntervalMinutes))
		m.input.CursorEnd()
		m.input.Focus()
		m.mode = modeInterval
		return m, textinput.Blink

	case "r":
		return m, m.open()
	}
	return m, nil
}

func (m Model) updateInterval(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeMain
		return m, nil
	case "enter":
		m.input.Blur()
		m.mode = modeMain
		n, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
		if err != nil {
			return m, nil
		}
		return m.setInterval(n)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) setInterval(minutes int) (tea.Model, tea.Cmd) {
	if !domain.ValidInterval(minutes) {
		return m, nil
	}
	m.busy = true
	m.view.IntervalMinutes = minutes
	return m, m.run(func(ctx context.Context) string { return m.panel.SetInterval(ctx, minutes) })
}

func nextFormat(f domain.FormatKind) domain.FormatKind {
	for i, k := range formatCycle {
		if k == f {
			return formatCycle[(i+1)%len(formatCycle)]
		}
	}
	return domain.FormatMarkdown
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Claude Chat Archiver"))
	b.WriteString("\n\n")

	autoSave := offStyle.Render("off")
	if m.view.AutoSave {
		autoSave = onStyle.Render("on")
	}
	b.WriteString(labelStyle.Render("Auto-save") + autoSave + "\n")

	interval := fmt.Sprintf("%d min", m.view.IntervalMinutes)
	if m.mode == modeInterval {
		interval = inputStyle.Render(m.input.View())
	}
	b.WriteString(labelStyle.Render("Interval") + interval + "\n")
	b.WriteString(labelStyle.Render("Format") + string(m.view.Format) + "\n")

	if m.view.Preview != "" {
		b.WriteString("\n")
		b.WriteString(previewStyle.Width(max(20, m.width-4)).Render(m.view.Preview))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(m.view.Status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func (m Model) help() string {
	if m.mode == modeInterval {
		return "enter: apply  esc: cancel"
	}
	return "s: save  a: auto-save  f: format  +/-/i: interval  r: refresh  q: quit"
}

// Run shows the popup until the user quits.
func Run(ctx context.Context, p *panel.Panel) error {
	_, err := tea.NewProgram(NewModel(ctx, p)).Run()
	return err
}
