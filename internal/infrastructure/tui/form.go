package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xcro3dile/filechat-go/internal/adapters/loader"
	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// form field indices
const (
	fieldKey = iota
	fieldPaths
	fieldCount
)

type form struct {
	key   textinput.Model
	paths textinput.Model
	focus int
}

func newForm(apiKey string) form {
	ki := textinput.New()
	ki.Placeholder = "sk-..."
	ki.EchoMode = textinput.EchoPassword
	ki.EchoCharacter = '•'
	ki.CharLimit = 256
	ki.SetValue(apiKey)
	ki.Focus()

	pi := textinput.New()
	pi.Placeholder = "~/docs/report.pdf, ~/docs/notes.pdf"
	pi.CharLimit = 2000

	f := form{key: ki, paths: pi, focus: fieldKey}
	if apiKey != "" {
		f.focus = fieldPaths
		f.key.Blur()
		f.paths.Focus()
	}
	return f
}

func (f *form) move(delta int) tea.Cmd {
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	if f.focus == fieldKey {
		f.paths.Blur()
		return f.key.Focus()
	}
	f.key.Blur()
	return f.paths.Focus()
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.form
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "down":
		cmd := f.move(1)
		return m, cmd

	case "shift+tab", "up":
		cmd := f.move(-1)
		return m, cmd

	case "enter":
		return m.submitForm()
	}

	var cmd tea.Cmd
	if f.focus == fieldKey {
		f.key, cmd = f.key.Update(msg)
	} else {
		f.paths, cmd = f.paths.Update(msg)
	}
	return m, cmd
}

// submitForm validates the form and starts loading documents.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	if entities.Credential(m.form.key.Value()).Empty() {
		m.setError(entities.AuthError("bootstrap", errors.New("missing API key")))
		cmd := m.form.move(fieldKey - m.form.focus)
		return m, cmd
	}

	paths := loader.SplitPaths(m.form.paths.Value())
	if len(paths) == 0 {
		if m.deps.Inbox == nil || m.deps.InboxDir == "" {
			m.setError(entities.ErrAwaitingDocuments)
			return m, nil
		}
		m.stop()
		ctx, cancel := context.WithCancel(m.ctx)
		m.cancel = cancel
		m.state = stateInbox
		m.setStatus("Drop PDF files into the inbox folder. Esc to go back.")

		inbox, dir := m.deps.Inbox, m.deps.InboxDir
		wait := func() tea.Msg {
			docs, err := inbox.Collect(ctx, dir)
			return docsMsg{docs: docs, err: err}
		}
		return m, tea.Batch(m.spinner.Tick, wait)
	}

	m.stop()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.state = stateBootstrapping
	m.docs = nil
	m.setStatus("Reading documents...")

	l := m.deps.Loader
	read := func() tea.Msg {
		docs, err := l.LoadPaths(ctx, paths)
		return docsMsg{docs: docs, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, read)
}

func (m Model) viewForm() string {
	f := m.form
	title := titleStyle.Render("FileChat")
	content := fmt.Sprintf(
		"%s\n\n%s  %s\n\n%s  %s\n\n%s\n\n%s",
		title,
		fieldLabel("Key:", f.focus == fieldKey), f.key.View(),
		fieldLabel("PDFs:", f.focus == fieldPaths), f.paths.View(),
		m.viewStatus(),
		helpStyle.Render("Enter: start  Tab: next field  Esc: quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
}

func (m Model) viewWaiting(label string) string {
	content := fmt.Sprintf(
		"%s\n\n%s %s...\n\n%s\n\n%s",
		titleStyle.Render("FileChat"),
		m.spinner.View(), label,
		m.viewStatus(),
		helpStyle.Render("Esc: back  Ctrl+C: quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
}

func (m Model) viewStatus() string {
	if m.status == "" {
		return ""
	}
	if m.isError {
		return errorStyle.Render(m.status)
	}
	return dimStyle.Render(m.status)
}
