// Package tui is the interactive shell: an editor view that saves entries and an
// entries view that lists them. All persistence goes through service.EntryService.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quarklog/internal/model"
	"quarklog/internal/service"
)

type view int

const (
	viewEditor view = iota
	viewEntries
)

// DisplayTimeLayout renders record timestamps in the entries view.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// EmptyEntryMessage is shown when ctrl+s is pressed on a blank editor.
const EmptyEntryMessage = "Nothing to save: type some text first"

type savedMsg struct{ id model.RecordID }

type entriesMsg struct{ items []model.Record }

type failedMsg struct{ err error }

// Model is the bubbletea model of the shell.
type Model struct {
	ctx context.Context
	svc service.EntryService

	input textarea.Model
	list  viewport.Model

	view      view
	entries   []model.Record
	status    string
	statusErr bool
	busy      bool
	fatal     error

	width  int
	height int
}

// New creates the shell model with the editor focused.
func New(ctx context.Context, svc service.EntryService) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter quark here"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(5)
	ta.Focus()

	return Model{
		ctx:   ctx,
		svc:   svc,
		input: ta,
		list:  viewport.New(60, 15),
	}
}

// Err returns the failure that ended the program under the abort policy, if any.
func (m Model) Err() error {
	return m.fatal
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) save(text string) tea.Cmd {
	return func() tea.Msg {
		id, err := m.svc.Save(m.ctx, text)
		if err != nil {
			return failedMsg{err: err}
		}
		return savedMsg{id: id}
	}
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		items, err := m.svc.Entries(m.ctx)
		if err != nil {
			return failedMsg{err: err}
		}
		return entriesMsg{items: items}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(max(msg.Width-6, 10))
		m.list.Width = max(msg.Width-4, 10)
		m.list.Height = max(msg.Height-8, 3)
		m.list.SetContent(renderEntries(m.entries, m.list.Width))
		return m, nil

	case savedMsg:
		m.busy = false
		m.input.Reset()
		m.setStatus(service.SavedMessage(msg.id), false)
		return m, nil

	case entriesMsg:
		m.busy = false
		m.entries = msg.items
		m.view = viewEntries
		m.input.Blur()
		m.list.SetContent(renderEntries(m.entries, m.list.Width))
		m.list.GotoTop()
		return m, nil

	case failedMsg:
		m.busy = false
		if service.IsFatal(msg.err) {
			m.fatal = msg.err
			return m, tea.Quit
		}
		m.setStatus(service.FailureMessage(msg.err), true)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.view == viewEntries {
			return m.updateEntries(msg)
		}
		return m.updateEditor(msg)
	}

	var cmd tea.Cmd
	if m.view == viewEditor {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlS:
		if m.busy {
			return m, nil
		}
		if strings.TrimSpace(m.input.Value()) == "" {
			m.setStatus(EmptyEntryMessage, true)
			return m, nil
		}
		m.busy = true
		m.setStatus("Saving...", false)
		return m, m.save(m.input.Value())
	case tea.KeyCtrlE:
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.load()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateEntries(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.view = viewEditor
		return m, m.input.Focus()
	case "ctrl+r":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.load()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) View() string {
	var b strings.Builder

	if m.view == viewEntries {
		b.WriteString(titleStyle.Render("Database Entries"))
		b.WriteString("\n")
		b.WriteString(listStyle.Render(m.list.View()))
		b.WriteString("\n")
		b.WriteString(m.renderStatus())
		b.WriteString(helpStyle.Render("esc back • ctrl+r reload • ↑/↓ scroll • ctrl+c quit"))
		return b.String()
	}

	b.WriteString(titleStyle.Render("quarklog"))
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString(helpStyle.Render("ctrl+s save • ctrl+e show entries • ctrl+c quit"))
	return b.String()
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return statusErrStyle.Render(m.status) + "\n"
	}
	return statusOKStyle.Render(m.status) + "\n"
}

// renderEntries formats one "<timestamp> - <text>" block per record, wrapped to width.
func renderEntries(items []model.Record, width int) string {
	if len(items) == 0 {
		return timestampStyle.Render("No entries yet.")
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		ts := it.CreatedAt.Local().Format(DisplayTimeLayout)
		line := timestampStyle.Render(ts) + " - " + it.Text
		if width > 0 {
			line = lipgloss.NewStyle().Width(width).Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
