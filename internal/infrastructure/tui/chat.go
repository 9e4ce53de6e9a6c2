package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.busy {
			m.stop()
			m.setStatus("Cancelling...")
		}
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case "enter":
		if m.busy {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m.submit(text)
	}

	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn in the background. Turn events flow back through m.events.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.busy = true
	m.pending = text
	m.stage = "sending"
	m.setStatus("")
	m.refreshLog()

	events := make(chan usecases.TurnEvent, 16)
	observe := func(ev usecases.TurnEvent) {
		select {
		case events <- ev:
		default:
		}
	}
	m.events = events
	m.result = m.deps.Conversation.Submit(ctx, m.session, text, observe)
	return m, tea.Batch(m.spinner.Tick, listen(m.events, m.result))
}

// listen delivers the next turn event, or the result once the turn ends.
func listen(events <-chan usecases.TurnEvent, result <-chan usecases.TurnResult) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return turnEventMsg{ev: ev}
		case res, ok := <-result:
			if !ok {
				return turnDoneMsg{res: usecases.TurnResult{Err: context.Canceled}}
			}
			return turnDoneMsg{res: res}
		}
	}
}

func (m Model) onTurnEvent(msg turnEventMsg) (tea.Model, tea.Cmd) {
	if !m.busy {
		return m, nil
	}
	ev := msg.ev
	switch {
	case ev.Status != "":
		m.stage = string(ev.Status)
	default:
		m.stage = strings.ReplaceAll(string(ev.Stage), "_", " ")
	}
	return m, listen(m.events, m.result)
}

func (m Model) onTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.stop()
	m.events = nil
	m.result = nil
	m.stage = ""
	if msg.res.Err != nil {
		m.setError(msg.res.Err)
	} else {
		m.setStatus("")
	}

	conv, sess, ctx := m.deps.Conversation, m.session, m.ctx
	reload := func() tea.Msg {
		msgs, err := conv.History(ctx, sess)
		return historyMsg{msgs: msgs, err: err}
	}
	focus := m.input.Focus()
	return m, tea.Batch(reload, focus)
}

// refreshLog renders the transcript, plus the in-flight question, into the viewport.
func (m *Model) refreshLog() {
	var b strings.Builder
	width := m.log.Width - 2
	if width < 20 {
		width = 20
	}
	body := lipgloss.NewStyle().Width(width).PaddingLeft(1)
	write := func(role entities.Role, content string) {
		if role == entities.RoleUser {
			b.WriteString(userRoleStyle.Render("You"))
		} else {
			b.WriteString(assistantRoleStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(body.Render(content))
		b.WriteString("\n\n")
	}

	pendingShown := false
	for _, msg := range m.history {
		write(msg.Role, msg.Content)
		if m.pending != "" && msg.Role == entities.RoleUser && msg.Content == m.pending {
			pendingShown = true
		}
	}
	if m.pending != "" && !pendingShown {
		write(entities.RoleUser, m.pending)
	}
	m.log.SetContent(b.String())
	m.log.GotoBottom()
}

func (m Model) viewChat() string {
	var files []string
	if m.session != nil {
		for _, f := range m.session.Files {
			files = append(files, f.Name)
		}
	}
	header := titleStyle.Render("FileChat") + dimStyle.Render(strings.Join(files, ", "))

	var status string
	switch {
	case m.busy:
		status = fmt.Sprintf("%s %s", m.spinner.View(), m.stage)
	case m.status != "":
		status = m.viewStatus()
	default:
		status = helpStyle.Render("Enter: send  PgUp/PgDn: scroll  Ctrl+C: quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.log.View(),
		m.input.View(),
		statusBarStyle.Width(m.width).Render(status),
	)
}
