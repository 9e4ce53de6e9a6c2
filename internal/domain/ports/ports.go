// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"io"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
)

// FilePurposeAssistants is the upload purpose for file_search documents.
const FilePurposeAssistants = "assistants"

// FileService stores documents with the provider.
type FileService interface {
	// UploadFile sends one document and returns its remote handle.
	UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (entities.RemoteFile, error)

	DeleteFile(ctx context.Context, fileID string) error
}

// IndexService builds retrieval indexes from uploaded files.
type IndexService interface {
	// CreateVectorIndex builds one index over all given files.
	CreateVectorIndex(ctx context.Context, name string, fileIDs []string) (entities.VectorIndex, error)

	// GetVectorIndex reads the current build state.
	GetVectorIndex(ctx context.Context, indexID string) (entities.VectorIndex, error)

	DeleteVectorIndex(ctx context.Context, indexID string) error
}

// AssistantService configures provider hosted assistants.
type AssistantService interface {
	CreateAssistant(ctx context.Context, indexID string, spec entities.AssistantSpec) (entities.Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
}

// ThreadService drives threads, runs and messages.
type ThreadService interface {
	CreateThread(ctx context.Context, initial []entities.ThreadMessage) (entities.Thread, error)
	AddMessage(ctx context.Context, threadID string, msg entities.ThreadMessage) (entities.ThreadMessage, error)
	StartRun(ctx context.Context, threadID, assistantID string) (entities.Run, error)

	// PollRunStatus is a single point-in-time read with no side effects.
	PollRunStatus(ctx context.Context, threadID, runID string) (entities.Run, error)

	CancelRun(ctx context.Context, threadID, runID string) (entities.Run, error)

	// ListMessages returns the thread messages, newest first.
	ListMessages(ctx context.Context, threadID string) ([]entities.ThreadMessage, error)
}

// AssistantProvider is the full facade over the model provider.
type AssistantProvider interface {
	FileService
	IndexService
	AssistantService
	ThreadService

	// VerifyCredential fails with an auth error when the credential is rejected.
	VerifyCredential(ctx context.Context) error
}

// ProviderFactory binds a provider client to one credential.
type ProviderFactory interface {
	ForCredential(cred entities.Credential) (AssistantProvider, error)
}

// DocumentStager writes a document to a scoped temporary file.
// The file exists only while fn runs.
type DocumentStager interface {
	WithStagedFile(ctx context.Context, doc entities.UploadedDocument, fn func(name string, r io.Reader) error) error
}

// Transcript holds the ordered display log of each session.
type Transcript interface {
	// Append stores msg and returns it with its sequence number set.
	Append(ctx context.Context, sessionID string, msg entities.DisplayMessage) (entities.DisplayMessage, error)

	// List returns the log in insertion order.
	List(ctx context.Context, sessionID string) ([]entities.DisplayMessage, error)

	// Drop forgets a session's log.
	Drop(ctx context.Context, sessionID string) error
}

// DocumentLoader reads user documents from disk.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.UploadedDocument, error)

	// LoadDir reads every supported document in dir, sorted by name.
	LoadDir(ctx context.Context, dir string) ([]entities.UploadedDocument, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
