// Package tui is the terminal front-end: a credential and document form
// followed by a chat view over one session.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"pkt.systems/pslog"
)

// Bootstrapper starts and ends sessions.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, req usecases.BootstrapRequest) (*usecases.Session, error)
	Teardown(ctx context.Context, sess *usecases.Session) error
}

// Conversation runs turns against a session.
type Conversation interface {
	Submit(ctx context.Context, sess *usecases.Session, text string, observe usecases.TurnObserver) <-chan usecases.TurnResult
	History(ctx context.Context, sess *usecases.Session) ([]entities.DisplayMessage, error)
}

// PathLoader reads the documents named in the form.
type PathLoader interface {
	LoadPaths(ctx context.Context, paths []string) ([]entities.UploadedDocument, error)
}

// Inbox waits for documents to appear in a folder.
type Inbox interface {
	Collect(ctx context.Context, dir string) ([]entities.UploadedDocument, error)
}

// Deps wires the model to the application.
type Deps struct {
	Bootstrap    Bootstrapper
	Conversation Conversation
	Loader       PathLoader
	Inbox        Inbox  // optional
	InboxDir     string // used when paths are left empty
	APIKey       string // prefills the credential field
}

type state int

const (
	stateForm state = iota
	stateInbox
	stateBootstrapping
	stateChat
)

type (
	docsMsg struct {
		docs []entities.UploadedDocument
		err  error
	}
	bootstrapMsg struct {
		sess *usecases.Session
		err  error
	}
	turnEventMsg struct{ ev usecases.TurnEvent }
	turnDoneMsg  struct{ res usecases.TurnResult }
	historyMsg   struct {
		msgs []entities.DisplayMessage
		err  error
	}
)

// Model is the bubbletea model of the terminal UI.
type Model struct {
	ctx   context.Context
	deps  Deps
	state state

	form    form
	spinner spinner.Model
	log     viewport.Model
	input   textinput.Model

	cancel  context.CancelFunc // in-flight inbox wait, bootstrap or turn
	session *usecases.Session
	docs    []entities.UploadedDocument
	history []entities.DisplayMessage
	pending string // user text of the in-flight turn
	busy    bool
	events  chan usecases.TurnEvent
	result  <-chan usecases.TurnResult
	stage   string

	status   string
	isError  bool
	width    int
	height   int
	quitting bool
}

// New creates the model. ctx bounds every operation it starts.
func New(ctx context.Context, deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	in := textinput.New()
	in.Placeholder = "Ask about your documents..."
	in.CharLimit = 4000

	m := Model{
		ctx:     ctx,
		deps:    deps,
		form:    newForm(deps.APIKey),
		spinner: sp,
		log:     viewport.New(80, 20),
		input:   in,
		width:   80,
		height:  24,
	}
	m.status = "Enter your API key and one or more PDF paths."
	if deps.Inbox != nil && deps.InboxDir != "" {
		m.status = fmt.Sprintf("Enter your API key. Leave paths empty to wait for PDFs in %s.", deps.InboxDir)
	}
	return m
}

// Session returns the active session, if any.
func (m Model) Session() *usecases.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.state == stateForm || (m.state == stateChat && !m.busy) {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case docsMsg:
		return m.onDocs(msg)

	case bootstrapMsg:
		return m.onBootstrap(msg)

	case turnEventMsg:
		return m.onTurnEvent(msg)

	case turnDoneMsg:
		return m.onTurnDone(msg)

	case historyMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.history = msg.msgs
		m.pending = ""
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stop()
			m.quitting = true
			return m, tea.Quit
		}
		switch m.state {
		case stateForm:
			return m.updateForm(msg)
		case stateInbox, stateBootstrapping:
			if msg.String() == "esc" {
				m.stop()
				m.state = stateForm
				m.setStatus("Cancelled.")
			}
			return m, nil
		case stateChat:
			return m.updateChat(msg)
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case stateInbox:
		return m.viewWaiting(fmt.Sprintf("Waiting for PDFs in %s", m.deps.InboxDir))
	case stateBootstrapping:
		return m.viewWaiting(fmt.Sprintf("Uploading and indexing %d document(s)", len(m.docs)))
	case stateChat:
		return m.viewChat()
	default:
		return m.viewForm()
	}
}

// stop cancels whatever is in flight.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.isError = false
}

func (m *Model) setError(err error) {
	m.status = describeError(err)
	m.isError = true
}

func (m *Model) resize() {
	m.log.Width = m.width
	h := m.height - 4
	if h < 3 {
		h = 3
	}
	m.log.Height = h
	m.input.Width = m.width - 4
	m.refreshLog()
}

// startBootstrap runs bootstrap over docs.
func (m Model) startBootstrap(docs []entities.UploadedDocument) (Model, tea.Cmd) {
	m.stop()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.docs = docs
	m.state = stateBootstrapping
	m.setStatus("Bootstrapping session...")

	boot := m.deps.Bootstrap
	req := usecases.BootstrapRequest{
		SessionID:  uuid.NewString(),
		Credential: entities.Credential(m.form.key.Value()),
		Documents:  docs,
	}
	run := func() tea.Msg {
		sess, err := boot.Bootstrap(ctx, req)
		return bootstrapMsg{sess: sess, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m Model) onDocs(msg docsMsg) (tea.Model, tea.Cmd) {
	if m.state != stateInbox && m.state != stateBootstrapping {
		return m, nil
	}
	if msg.err != nil {
		m.stop()
		m.state = stateForm
		m.setError(msg.err)
		return m, nil
	}
	return m.startBootstrap(msg.docs)
}

func (m Model) onBootstrap(msg bootstrapMsg) (tea.Model, tea.Cmd) {
	if m.state != stateBootstrapping {
		// Cancelled while running; the use case already discarded remote objects.
		return m, nil
	}
	m.stop()
	if msg.err != nil {
		m.state = stateForm
		m.setError(msg.err)
		return m, nil
	}
	m.session = msg.sess
	m.state = stateChat
	m.history = nil
	m.refreshLog()
	m.setStatus(fmt.Sprintf("Ready: %d document(s) indexed. Esc cancels a running question.", len(msg.sess.Files)))
	pslog.Ctx(m.ctx).Info("session ready", "session", msg.sess.ID, "assistant", msg.sess.Assistant.ID)
	focus := m.input.Focus()
	return m, focus
}

// describeError turns an error into status line text.
func describeError(err error) string {
	switch {
	case errors.Is(err, entities.ErrAwaitingDocuments), errors.Is(err, entities.ErrNoSession), errors.Is(err, entities.ErrEmptyPrompt):
		return err.Error()
	}
	switch entities.KindOf(err) {
	case entities.KindAuth:
		return "API key rejected: " + err.Error()
	case entities.KindUpload:
		return "Upload failed: " + err.Error()
	case entities.KindIndex:
		return "Indexing failed: " + err.Error()
	case entities.KindConfig:
		return "Assistant configuration rejected: " + err.Error()
	case entities.KindRun:
		switch entities.ReasonOf(err) {
		case entities.ReasonTimeout:
			return "The assistant did not answer in time."
		case entities.ReasonCancelled:
			return "Question cancelled."
		}
		return "The assistant could not answer: " + err.Error()
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled."
	}
	return "Error: " + err.Error()
}
