// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"
)

// Credential is the provider secret scoping every call of a session.
// It lives in memory only and prints redacted.
type Credential string

// String redacts the secret so it never ends up in logs.
func (c Credential) String() string {
	if c.Empty() {
		return ""
	}
	return "[redacted]"
}

// Empty reports whether no credential was entered.
func (c Credential) Empty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Secret returns the raw credential for the transport layer.
func (c Credential) Secret() string {
	return strings.TrimSpace(string(c))
}

// UploadedDocument is a user supplied file before it reaches the provider.
type UploadedDocument struct {
	Name string
	Data []byte
}

var pdfMagic = []byte("%PDF-")

// Validate checks the document is a non-empty PDF.
func (d UploadedDocument) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return UploadError("validate", "", errMissingName)
	}
	if !strings.EqualFold(filepath.Ext(d.Name), ".pdf") {
		return UploadError("validate", d.Name, errNotPDF)
	}
	if len(d.Data) == 0 {
		return UploadError("validate", d.Name, errEmptyDocument)
	}
	if !bytes.HasPrefix(d.Data, pdfMagic) {
		return UploadError("validate", d.Name, errNotPDF)
	}
	return nil
}

// RemoteFile is a document after upload, identified by the provider.
type RemoteFile struct {
	ID    string
	Name  string
	Bytes int64
}

// IndexStatus is the provider build state of a vector index.
type IndexStatus string

const (
	IndexInProgress IndexStatus = "in_progress"
	IndexCompleted  IndexStatus = "completed"
	IndexExpired    IndexStatus = "expired"
)

// FileCounts tracks per-file indexing progress.
type FileCounts struct {
	InProgress int
	Completed  int
	Failed     int
	Cancelled  int
	Total      int
}

// VectorIndex is a provider managed retrieval index over uploaded files.
// One per session, immutable once created.
type VectorIndex struct {
	ID         string
	Name       string
	Status     IndexStatus
	FileIDs    []string
	FileCounts FileCounts
}

// Ready reports whether every file finished indexing.
func (v VectorIndex) Ready() bool {
	return v.Status == IndexCompleted && v.FileCounts.InProgress == 0
}

// AssistantSpec configures the assistant created at bootstrap.
type AssistantSpec struct {
	Name         string
	Instructions string
	Model        string
	Tools        []string
}

// Assistant is the provider hosted agent bound to exactly one index.
type Assistant struct {
	ID            string
	Name          string
	Model         string
	VectorIndexID string
}

// Thread scopes one exchange of messages on the provider side.
type Thread struct {
	ID string
}

// RunStatus is the provider defined state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether polling can stop.
// requires_action counts as terminal: file_search never asks for tool output.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete, RunRequiresAction:
		return true
	}
	return false
}

// Succeeded reports whether the run produced a reply.
func (s RunStatus) Succeeded() bool {
	return s == RunCompleted
}

// Run is one assistant execution against a thread.
type Run struct {
	ID          string
	ThreadID    string
	AssistantID string
	Status      RunStatus
	LastError   string
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ThreadMessage is a message as stored by the provider.
type ThreadMessage struct {
	ID        string
	ThreadID  string
	RunID     string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// DisplayMessage is one entry of the session display log.
// Seq increases strictly with insertion order.
type DisplayMessage struct {
	Seq     int64
	Role    Role
	Content string
	At      time.Time
}
