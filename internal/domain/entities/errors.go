package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures surfaced to the user.
type ErrorKind string

const (
	KindAuth   ErrorKind = "auth"
	KindUpload ErrorKind = "upload"
	KindIndex  ErrorKind = "index"
	KindConfig ErrorKind = "config"
	KindRun    ErrorKind = "run"
)

// Run failure reasons.
const (
	ReasonTimeout        = "timeout"
	ReasonCancelled      = "cancelled"
	ReasonFailed         = "failed"
	ReasonExpired        = "expired"
	ReasonIncomplete     = "incomplete"
	ReasonRequiresAction = "requires_action"
	ReasonNoReply        = "no_reply"
)

// State sentinels. These are not provider failures.
var (
	// ErrAwaitingDocuments means no document was supplied; bootstrap does not run.
	ErrAwaitingDocuments = errors.New("awaiting documents: select at least one PDF")

	// ErrNoSession means a turn was requested before an assistant exists.
	ErrNoSession = errors.New("no active session: upload documents first")

	// ErrEmptyPrompt rejects blank user input.
	ErrEmptyPrompt = errors.New("empty message")
)

var (
	errMissingName   = errors.New("missing file name")
	errNotPDF        = errors.New("not a PDF document")
	errEmptyDocument = errors.New("empty document")
)

// Error is a classified failure of one operation.
type Error struct {
	Kind   ErrorKind
	Op     string // operation, e.g. "upload_file"
	Reason string // short machine readable cause, e.g. "timeout"
	Status int    // provider HTTP status when known
	Target string // file name or remote id the operation acted on
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(" error")
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	if e.Target != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Target)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// AuthError reports a bad or missing credential.
func AuthError(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// UploadError reports a rejected document or an I/O failure while uploading.
func UploadError(op, name string, err error) *Error {
	return &Error{Kind: KindUpload, Op: op, Target: name, Err: err}
}

// IndexError reports a failed index build.
func IndexError(op, reason string, err error) *Error {
	return &Error{Kind: KindIndex, Op: op, Reason: reason, Err: err}
}

// ConfigError reports a rejected assistant configuration.
func ConfigError(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// RunError reports a run that did not complete.
func RunError(reason string, err error) *Error {
	return &Error{Kind: KindRun, Op: "run", Reason: reason, Err: err}
}

// WithStatus records the provider HTTP status.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func classify(kind ErrorKind) func(error) bool {
	return func(err error) bool {
		var e *Error
		if errors.As(err, &e) {
			return e.Kind == kind
		}
		return false
	}
}

// Predicates for the error taxonomy.
var (
	IsAuth   = classify(KindAuth)
	IsUpload = classify(KindUpload)
	IsIndex  = classify(KindIndex)
	IsConfig = classify(KindConfig)
	IsRun    = classify(KindRun)
)

// KindOf returns the taxonomy kind of err, or "" when unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the recorded reason of a classified error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
