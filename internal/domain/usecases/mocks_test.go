package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
)

// mockProvider implements ports.AssistantProvider for testing
type mockProvider struct {
	mu sync.Mutex

	verifyErr    error
	uploadErr    error
	uploadErrAt  int // fail the nth upload (1-based) when uploadErr is set
	indexErr     error
	assistantErr error
	indexStates  []entities.VectorIndex // returned by successive GetVectorIndex calls
	runStatuses  []entities.RunStatus   // returned by successive PollRunStatus calls
	runLastError string
	messagesFn   func(threadID, runID string) []entities.ThreadMessage
	pollBlocks   chan struct{} // when set, PollRunStatus signals it and waits for ctx to end

	calls       []string
	uploaded    []string // file names in upload order
	indexFiles  [][]string
	assistants  []entities.AssistantSpec
	assistantOn []string
	threads     []string
	runs        []string
	cancelled   []string
	deleted     []string
	polls       int
	nextID      int
}

func (m *mockProvider) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%d", prefix, m.nextID)
}

func (m *mockProvider) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockProvider) VerifyCredential(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("verify")
	return m.verifyErr
}

func (m *mockProvider) UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (entities.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("upload")
	data, err := io.ReadAll(r)
	if err != nil {
		return entities.RemoteFile{}, err
	}
	if m.uploadErr != nil && (m.uploadErrAt == 0 || m.uploadErrAt == len(m.uploaded)+1) {
		return entities.RemoteFile{}, m.uploadErr
	}
	m.uploaded = append(m.uploaded, name)
	return entities.RemoteFile{ID: fmt.Sprintf("F%d", len(m.uploaded)), Name: name, Bytes: int64(len(data))}, nil
}

func (m *mockProvider) DeleteFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileID)
	return nil
}

func (m *mockProvider) CreateVectorIndex(ctx context.Context, name string, fileIDs []string) (entities.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("index")
	if m.indexErr != nil {
		return entities.VectorIndex{}, m.indexErr
	}
	m.indexFiles = append(m.indexFiles, append([]string(nil), fileIDs...))
	idx := entities.VectorIndex{ID: "V1", Name: name, FileIDs: fileIDs, Status: entities.IndexCompleted,
		FileCounts: entities.FileCounts{Completed: len(fileIDs), Total: len(fileIDs)}}
	if len(m.indexStates) > 0 {
		idx.Status = entities.IndexInProgress
		idx.FileCounts = entities.FileCounts{InProgress: len(fileIDs), Total: len(fileIDs)}
	}
	return idx, nil
}

func (m *mockProvider) GetVectorIndex(ctx context.Context, indexID string) (entities.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get_index")
	if len(m.indexStates) == 0 {
		return entities.VectorIndex{ID: indexID, Status: entities.IndexCompleted}, nil
	}
	st := m.indexStates[0]
	if len(m.indexStates) > 1 {
		m.indexStates = m.indexStates[1:]
	}
	st.ID = indexID
	return st, nil
}

func (m *mockProvider) DeleteVectorIndex(ctx context.Context, indexID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, indexID)
	return nil
}

func (m *mockProvider) CreateAssistant(ctx context.Context, indexID string, spec entities.AssistantSpec) (entities.Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("assistant")
	if m.assistantErr != nil {
		return entities.Assistant{}, m.assistantErr
	}
	m.assistants = append(m.assistants, spec)
	m.assistantOn = append(m.assistantOn, indexID)
	return entities.Assistant{ID: "A1", Name: spec.Name, Model: spec.Model, VectorIndexID: indexID}, nil
}

func (m *mockProvider) DeleteAssistant(ctx context.Context, assistantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, assistantID)
	return nil
}

func (m *mockProvider) CreateThread(ctx context.Context, initial []entities.ThreadMessage) (entities.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("thread")
	id := fmt.Sprintf("T%d", len(m.threads)+1)
	m.threads = append(m.threads, id)
	return entities.Thread{ID: id}, nil
}

func (m *mockProvider) AddMessage(ctx context.Context, threadID string, msg entities.ThreadMessage) (entities.ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("message")
	return entities.ThreadMessage{ID: m.id("M"), ThreadID: threadID, Role: msg.Role, Content: msg.Content}, nil
}

func (m *mockProvider) StartRun(ctx context.Context, threadID, assistantID string) (entities.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("run")
	id := fmt.Sprintf("R%d", len(m.runs)+1)
	m.runs = append(m.runs, id)
	return entities.Run{ID: id, ThreadID: threadID, AssistantID: assistantID, Status: entities.RunQueued}, nil
}

func (m *mockProvider) PollRunStatus(ctx context.Context, threadID, runID string) (entities.Run, error) {
	if m.pollBlocks != nil {
		m.pollBlocks <- struct{}{}
		<-ctx.Done()
		return entities.Run{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	status := entities.RunCompleted
	if len(m.runStatuses) > 0 {
		status = m.runStatuses[0]
		if len(m.runStatuses) > 1 {
			m.runStatuses = m.runStatuses[1:]
		}
	}
	run := entities.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == entities.RunFailed {
		run.LastError = m.runLastError
	}
	return run, nil
}

func (m *mockProvider) CancelRun(ctx context.Context, threadID, runID string) (entities.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, runID)
	return entities.Run{ID: runID, ThreadID: threadID, Status: entities.RunCancelling}, nil
}

func (m *mockProvider) ListMessages(ctx context.Context, threadID string) ([]entities.ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("list")
	runID := ""
	if len(m.runs) > 0 {
		runID = m.runs[len(m.runs)-1]
	}
	if m.messagesFn != nil {
		return m.messagesFn(threadID, runID), nil
	}
	now := time.Now()
	return []entities.ThreadMessage{
		{ID: "m2", ThreadID: threadID, RunID: runID, Role: entities.RoleAssistant, Content: "reply for " + threadID, CreatedAt: now},
		{ID: "m1", ThreadID: threadID, Role: entities.RoleUser, Content: "question", CreatedAt: now.Add(-time.Second)},
	}, nil
}

func (m *mockProvider) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockFactory implements ports.ProviderFactory for testing
type mockFactory struct {
	provider *mockProvider
	creds    []entities.Credential
}

func (f *mockFactory) ForCredential(cred entities.Credential) (ports.AssistantProvider, error) {
	f.creds = append(f.creds, cred)
	return f.provider, nil
}

// mockStager implements ports.DocumentStager without touching disk
type mockStager struct {
	staged  []string
	active  int
	stageFn func(doc entities.UploadedDocument) error
}

func (s *mockStager) WithStagedFile(ctx context.Context, doc entities.UploadedDocument, fn func(name string, r io.Reader) error) error {
	if s.stageFn != nil {
		if err := s.stageFn(doc); err != nil {
			return err
		}
	}
	s.active++
	defer func() { s.active-- }()
	s.staged = append(s.staged, doc.Name)
	return fn(doc.Name, bytes.NewReader(doc.Data))
}

// mockTranscript implements ports.Transcript for testing
type mockTranscript struct {
	mu      sync.Mutex
	seq     int64
	logs    map[string][]entities.DisplayMessage
	dropped []string
	failOn  entities.Role
}

func newMockTranscript() *mockTranscript {
	return &mockTranscript{logs: make(map[string][]entities.DisplayMessage)}
}

func (t *mockTranscript) Append(ctx context.Context, sessionID string, msg entities.DisplayMessage) (entities.DisplayMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn != "" && msg.Role == t.failOn {
		return entities.DisplayMessage{}, errors.New("transcript unavailable")
	}
	t.seq++
	msg.Seq = t.seq
	t.logs[sessionID] = append(t.logs[sessionID], msg)
	return msg, nil
}

func (t *mockTranscript) List(ctx context.Context, sessionID string) ([]entities.DisplayMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]entities.DisplayMessage(nil), t.logs[sessionID]...), nil
}

func (t *mockTranscript) Drop(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.logs, sessionID)
	t.dropped = append(t.dropped, sessionID)
	return nil
}

func pdf(name string) entities.UploadedDocument {
	return entities.UploadedDocument{Name: name, Data: []byte("%PDF-1.7\n" + name)}
}

func fastPolicy() PollPolicy {
	return PollPolicy{Interval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1, Timeout: time.Second}
}
