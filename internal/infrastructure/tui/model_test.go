package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type stubBootstrap struct {
	mu   sync.Mutex
	err  error
	reqs []usecases.BootstrapRequest
	ctxs []context.Context
	torn []string
}

func (s *stubBootstrap) Bootstrap(ctx context.Context, req usecases.BootstrapRequest) (*usecases.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return nil, s.err
	}
	sess := &usecases.Session{ID: req.SessionID}
	for i, d := range req.Documents {
		sess.Files = append(sess.Files, entities.RemoteFile{ID: "F" + string(rune('1'+i)), Name: d.Name})
	}
	return sess, nil
}

func (s *stubBootstrap) Teardown(ctx context.Context, sess *usecases.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torn = append(s.torn, sess.ID)
	return nil
}

type stubConversation struct {
	mu      sync.Mutex
	block   bool // wait for cancellation instead of answering
	history []entities.DisplayMessage
	ctxs    []context.Context
}

func (s *stubConversation) append(role entities.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entities.DisplayMessage{Seq: int64(len(s.history) + 1), Role: role, Content: content})
}

func (s *stubConversation) Submit(ctx context.Context, sess *usecases.Session, text string, observe usecases.TurnObserver) <-chan usecases.TurnResult {
	s.mu.Lock()
	s.ctxs = append(s.ctxs, ctx)
	s.mu.Unlock()
	out := make(chan usecases.TurnResult, 1)
	go func() {
		defer close(out)
		s.append(entities.RoleUser, text)
		observe(usecases.TurnEvent{Stage: usecases.StageThreadCreated, ThreadID: "T1"})
		observe(usecases.TurnEvent{Stage: usecases.StageRunStarted, ThreadID: "T1", RunID: "R1", Status: entities.RunQueued})
		if s.block {
			<-ctx.Done()
			err := entities.RunError(entities.ReasonCancelled, ctx.Err())
			observe(usecases.TurnEvent{Stage: usecases.StageFailed, Err: err})
			out <- usecases.TurnResult{Err: err}
			return
		}
		s.append(entities.RoleAssistant, "answer to: "+text)
		reply := entities.DisplayMessage{Role: entities.RoleAssistant, Content: "answer to: " + text}
		observe(usecases.TurnEvent{Stage: usecases.StageCompleted, Reply: &reply})
		out <- usecases.TurnResult{Reply: reply}
	}()
	return out
}

func (s *stubConversation) History(ctx context.Context, sess *usecases.Session) ([]entities.DisplayMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.DisplayMessage(nil), s.history...), nil
}

type stubLoader struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (s *stubLoader) LoadPaths(ctx context.Context, paths []string) ([]entities.UploadedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = paths
	if s.err != nil {
		return nil, s.err
	}
	docs := make([]entities.UploadedDocument, len(paths))
	for i, p := range paths {
		docs[i] = entities.UploadedDocument{Name: p, Data: []byte("%PDF-1.7")}
	}
	return docs, nil
}

type stubInbox struct {
	docs      []entities.UploadedDocument
	block     bool
	cancelled chan struct{}
}

func (s *stubInbox) Collect(ctx context.Context, dir string) ([]entities.UploadedDocument, error) {
	if s.block {
		<-ctx.Done()
		close(s.cancelled)
		return nil, entities.ErrAwaitingDocuments
	}
	return s.docs, nil
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// pump runs cmd and feeds the model's own messages back into it until done holds.
func pump(t *testing.T, m Model, cmd tea.Cmd, done func(Model) bool) Model {
	t.Helper()
	msgs := make(chan tea.Msg, 64)
	var spawn func(tea.Cmd)
	spawn = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					spawn(sub)
				}
				return
			}
			select {
			case msgs <- msg:
			case <-time.After(3 * time.Second):
			}
		}()
	}
	spawn(cmd)

	deadline := time.After(2 * time.Second)
	for !done(m) {
		select {
		case msg := <-msgs:
			switch msg.(type) {
			case docsMsg, bootstrapMsg, turnEventMsg, turnDoneMsg, historyMsg:
				var next tea.Cmd
				m, next = send(m, msg)
				spawn(next)
			}
		case <-deadline:
			t.Fatalf("model did not settle: state=%d busy=%v status=%q", m.state, m.busy, m.status)
		}
	}
	return m
}

func readyModel(t *testing.T, conv *stubConversation) (Model, *stubBootstrap) {
	t.Helper()
	boot := &stubBootstrap{}
	m := New(context.Background(), Deps{Bootstrap: boot, Conversation: conv, Loader: &stubLoader{}, APIKey: "sk-test"})
	m.form.paths.SetValue("a.pdf")
	m, cmd := send(m, key(tea.KeyEnter))
	m = pump(t, m, cmd, func(m Model) bool { return m.state == stateChat })
	return m, boot
}

func TestFormPrefillsAndMasksKey(t *testing.T) {
	m := New(context.Background(), Deps{APIKey: "sk-secret"})
	if m.form.key.Value() != "sk-secret" {
		t.Fatalf("expected prefilled key, got %q", m.form.key.Value())
	}
	if m.form.key.EchoMode != textinput.EchoPassword {
		t.Fatal("key field must be masked")
	}
	if m.form.focus != fieldPaths {
		t.Fatal("expected focus on paths when the key is prefilled")
	}
	if strings.Contains(m.View(), "sk-secret") {
		t.Fatal("view shows the credential")
	}
}

func TestFormTabMovesFocus(t *testing.T) {
	m := New(context.Background(), Deps{})
	if m.form.focus != fieldKey {
		t.Fatal("expected focus on key")
	}
	m, _ = send(m, key(tea.KeyTab))
	if m.form.focus != fieldPaths || !m.form.paths.Focused() || m.form.key.Focused() {
		t.Fatal("tab should focus paths")
	}
	m, _ = send(m, key(tea.KeyShiftTab))
	if m.form.focus != fieldKey || !m.form.key.Focused() {
		t.Fatal("shift+tab should focus key")
	}
}

func TestSubmitWithoutKey(t *testing.T) {
	m := New(context.Background(), Deps{Loader: &stubLoader{}})
	m.form.paths.SetValue("a.pdf")
	m, _ = send(m, key(tea.KeyEnter))
	if m.state != stateForm || !m.isError || !strings.Contains(m.status, "API key") {
		t.Fatalf("expected key error, got state=%d status=%q", m.state, m.status)
	}
}

func TestSubmitWithoutPathsAwaitsDocuments(t *testing.T) {
	boot := &stubBootstrap{}
	m := New(context.Background(), Deps{Bootstrap: boot, Loader: &stubLoader{}, APIKey: "sk-test"})
	m, cmd := send(m, key(tea.KeyEnter))
	if cmd != nil {
		t.Fatal("nothing should start without documents")
	}
	if m.state != stateForm || m.status != entities.ErrAwaitingDocuments.Error() {
		t.Fatalf("expected awaiting message, got %q", m.status)
	}
	if len(boot.reqs) != 0 {
		t.Fatal("bootstrap must not run")
	}
}

func TestBootstrapFromPaths(t *testing.T) {
	boot := &stubBootstrap{}
	ld := &stubLoader{}
	m := New(context.Background(), Deps{Bootstrap: boot, Conversation: &stubConversation{}, Loader: ld, APIKey: "sk-test"})
	m.form.paths.SetValue("a.pdf, ~/b.pdf")

	m, cmd := send(m, key(tea.KeyEnter))
	if m.state != stateBootstrapping {
		t.Fatalf("expected bootstrapping, got %d", m.state)
	}
	m = pump(t, m, cmd, func(m Model) bool { return m.state == stateChat })

	if len(ld.paths) != 2 || ld.paths[0] != "a.pdf" || ld.paths[1] != "~/b.pdf" {
		t.Fatalf("unexpected paths: %v", ld.paths)
	}
	if len(boot.reqs) != 1 {
		t.Fatalf("expected one bootstrap, got %d", len(boot.reqs))
	}
	req := boot.reqs[0]
	if req.Credential.Secret() != "sk-test" || len(req.Documents) != 2 || req.SessionID == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if m.Session() == nil || m.Session().ID != req.SessionID {
		t.Fatal("session not kept")
	}
	if !m.input.Focused() {
		t.Fatal("chat input should be focused")
	}
}

func TestBootstrapFailureReturnsToForm(t *testing.T) {
	boot := &stubBootstrap{err: entities.AuthError("verify_credential", errors.New("invalid key"))}
	m := New(context.Background(), Deps{Bootstrap: boot, Loader: &stubLoader{}, APIKey: "sk-test"})
	m.form.paths.SetValue("a.pdf")
	m, cmd := send(m, key(tea.KeyEnter))
	m = pump(t, m, cmd, func(m Model) bool { return m.state == stateForm })

	if !m.isError || !strings.HasPrefix(m.status, "API key rejected") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if m.Session() != nil {
		t.Fatal("no session expected")
	}
}

func TestLoadFailureReturnsToForm(t *testing.T) {
	ld := &stubLoader{err: entities.UploadError("load", "a.pdf", errors.New("no such file"))}
	m := New(context.Background(), Deps{Bootstrap: &stubBootstrap{}, Loader: ld, APIKey: "sk-test"})
	m.form.paths.SetValue("a.pdf")
	m, cmd := send(m, key(tea.KeyEnter))
	m = pump(t, m, cmd, func(m Model) bool { return m.state == stateForm })
	if !strings.HasPrefix(m.status, "Upload failed") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestInboxWait(t *testing.T) {
	boot := &stubBootstrap{}
	inbox := &stubInbox{docs: []entities.UploadedDocument{{Name: "dropped.pdf", Data: []byte("%PDF-1.7")}}}
	m := New(context.Background(), Deps{Bootstrap: boot, Conversation: &stubConversation{}, Loader: &stubLoader{}, Inbox: inbox, InboxDir: "/inbox", APIKey: "sk-test"})

	m, cmd := send(m, key(tea.KeyEnter))
	if m.state != stateInbox {
		t.Fatalf("expected inbox wait, got %d", m.state)
	}
	if !strings.Contains(m.View(), "/inbox") {
		t.Fatal("view should name the inbox folder")
	}
	m = pump(t, m, cmd, func(m Model) bool { return m.state == stateChat })
	if len(boot.reqs) != 1 || boot.reqs[0].Documents[0].Name != "dropped.pdf" {
		t.Fatalf("unexpected bootstrap: %+v", boot.reqs)
	}
}

func TestEscCancelsInboxWait(t *testing.T) {
	inbox := &stubInbox{block: true, cancelled: make(chan struct{})}
	m := New(context.Background(), Deps{Bootstrap: &stubBootstrap{}, Loader: &stubLoader{}, Inbox: inbox, InboxDir: "/inbox", APIKey: "sk-test"})
	m, cmd := send(m, key(tea.KeyEnter))
	go pump(t, m, cmd, func(Model) bool { return true })

	m, _ = send(m, key(tea.KeyEsc))
	if m.state != stateForm {
		t.Fatalf("expected form, got %d", m.state)
	}
	select {
	case <-inbox.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("inbox wait not cancelled")
	}
}

func TestChatTurn(t *testing.T) {
	conv := &stubConversation{}
	m, _ := readyModel(t, conv)

	m.input.SetValue("what is in a.pdf?")
	m, cmd := send(m, key(tea.KeyEnter))
	if !m.busy || m.input.Value() != "" {
		t.Fatal("expected busy model with cleared input")
	}
	if !strings.Contains(m.log.View(), "what is in a.pdf?") {
		t.Fatal("question should show while the turn runs")
	}

	// Input is ignored while busy.
	m, _ = send(m, key(tea.KeyEnter))

	m = pump(t, m, cmd, func(m Model) bool { return !m.busy && len(m.history) == 2 })
	if m.isError {
		t.Fatalf("unexpected error %q", m.status)
	}
	if m.history[1].Content != "answer to: what is in a.pdf?" {
		t.Fatalf("unexpected history: %+v", m.history)
	}
	if !strings.Contains(m.log.View(), "answer to: what is in a.pdf?") {
		t.Fatal("reply missing from the log")
	}
}

func TestFinishedWorkReleasesContexts(t *testing.T) {
	conv := &stubConversation{}
	m, boot := readyModel(t, conv)
	if len(boot.ctxs) != 1 || boot.ctxs[0].Err() == nil {
		t.Fatal("bootstrap context should be released once the session is ready")
	}

	m.input.SetValue("question")
	m, cmd := send(m, key(tea.KeyEnter))
	m = pump(t, m, cmd, func(m Model) bool { return !m.busy && len(m.history) == 2 })
	if m.cancel != nil {
		t.Fatal("no cancel func should be left after the turn")
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.ctxs) != 1 || conv.ctxs[0].Err() == nil {
		t.Fatal("turn context should be released once the turn ends")
	}
}

func TestEmptyInputDoesNothing(t *testing.T) {
	m, _ := readyModel(t, &stubConversation{})
	m.input.SetValue("   ")
	m, cmd := send(m, key(tea.KeyEnter))
	if m.busy || cmd != nil {
		t.Fatal("blank input must not start a turn")
	}
}

func TestEscCancelsTurn(t *testing.T) {
	conv := &stubConversation{block: true}
	m, _ := readyModel(t, conv)

	m.input.SetValue("slow question")
	m, cmd := send(m, key(tea.KeyEnter))
	m, _ = send(m, key(tea.KeyEsc))
	m = pump(t, m, cmd, func(m Model) bool { return !m.busy && m.history != nil })

	if !m.isError || m.status != "Question cancelled." {
		t.Fatalf("unexpected status %q", m.status)
	}
	if len(m.history) != 1 || m.history[0].Role != entities.RoleUser {
		t.Fatalf("expected the question alone in history, got %+v", m.history)
	}
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := readyModel(t, &stubConversation{})
	m, cmd := send(m, key(tea.KeyCtrlC))
	if !m.quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit")
	}
	if m.View() != "" {
		t.Fatal("expected empty view after quit")
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{entities.ErrAwaitingDocuments, entities.ErrAwaitingDocuments.Error()},
		{entities.AuthError("verify", errors.New("bad")), "API key rejected"},
		{entities.UploadError("upload", "a.pdf", errors.New("bad")), "Upload failed"},
		{entities.IndexError("index_files", entities.ReasonFailed, errors.New("bad")), "Indexing failed"},
		{entities.ConfigError("create_assistant", errors.New("bad")), "Assistant configuration rejected"},
		{entities.RunError(entities.ReasonTimeout, errors.New("slow")), "The assistant did not answer in time."},
		{entities.RunError(entities.ReasonCancelled, context.Canceled), "Question cancelled."},
		{entities.RunError(entities.ReasonFailed, errors.New("overloaded")), "The assistant could not answer"},
		{errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.HasPrefix(got, tt.want) {
			t.Errorf("%v: expected prefix %q, got %q", tt.err, tt.want, got)
		}
	}
}
