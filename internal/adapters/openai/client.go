// Package openai provides the OpenAI Assistants adapter.
// Clean Architecture: Adapter implementing ports.AssistantProvider.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
	"pkt.systems/pslog"
)

const betaHeader = "assistants=v2"

// Client implements ports.AssistantProvider for one API key.
type Client struct {
	apiKey     string
	httpClient *http.Client
	opts       options
}

var _ ports.AssistantProvider = (*Client)(nil)

// New constructs a client bound to apiKey.
func New(apiKey string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: o.httpClient,
		opts:       o,
	}
}

// call describes one REST call and how its failures are classified.
type call struct {
	op     string
	kind   entities.ErrorKind
	target string
	method string
	path   string
}

// VerifyCredential lists models to check the key before any upload.
func (c *Client) VerifyCredential(ctx context.Context) error {
	if c.apiKey == "" {
		return entities.AuthError("verify_credential", errors.New("missing API key"))
	}
	// Only a rejected key is an auth error; outages stay unclassified.
	return c.doJSON(ctx, call{op: "verify_credential", method: http.MethodGet, path: "/models"}, nil, nil)
}

// UploadFile posts the document as multipart form data.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (entities.RemoteFile, error) {
	cl := call{op: "upload_file", kind: entities.KindUpload, target: name, method: http.MethodPost, path: "/files"}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return entities.RemoteFile{}, c.wrap(cl, 0, err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return entities.RemoteFile{}, c.wrap(cl, 0, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return entities.RemoteFile{}, c.wrap(cl, 0, fmt.Errorf("reading document: %w", err))
	}
	if err := mw.Close(); err != nil {
		return entities.RemoteFile{}, c.wrap(cl, 0, err)
	}

	body, err := c.doRequest(ctx, cl, buf, mw.FormDataContentType())
	if err != nil {
		return entities.RemoteFile{}, err
	}
	defer body.Close()

	var f fileObject
	if err := json.NewDecoder(body).Decode(&f); err != nil {
		return entities.RemoteFile{}, c.wrap(cl, 0, fmt.Errorf("decoding response: %w", err))
	}
	if f.Filename == "" {
		f.Filename = name
	}
	return entities.RemoteFile{ID: f.ID, Name: f.Filename, Bytes: f.Bytes}, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, call{op: "delete_file", kind: entities.KindUpload, target: fileID, method: http.MethodDelete, path: "/files/" + url.PathEscape(fileID)}, nil, nil)
}

// CreateVectorIndex creates a vector store over fileIDs.
func (c *Client) CreateVectorIndex(ctx context.Context, name string, fileIDs []string) (entities.VectorIndex, error) {
	cl := call{op: "create_index", kind: entities.KindIndex, method: http.MethodPost, path: "/vector_stores"}
	if len(fileIDs) == 0 {
		return entities.VectorIndex{}, c.wrap(cl, 0, errors.New("no files to index"))
	}
	var vs vectorStore
	if err := c.doJSON(ctx, cl, vectorStoreRequest{Name: name, FileIDs: fileIDs}, &vs); err != nil {
		return entities.VectorIndex{}, err
	}
	return vs.toEntity(append([]string(nil), fileIDs...)), nil
}

// GetVectorIndex reads the build status of a vector store.
func (c *Client) GetVectorIndex(ctx context.Context, indexID string) (entities.VectorIndex, error) {
	cl := call{op: "get_index", kind: entities.KindIndex, target: indexID, method: http.MethodGet, path: "/vector_stores/" + url.PathEscape(indexID)}
	var vs vectorStore
	if err := c.doJSON(ctx, cl, nil, &vs); err != nil {
		return entities.VectorIndex{}, err
	}
	return vs.toEntity(nil), nil
}

// DeleteVectorIndex removes a vector store. The files stay.
func (c *Client) DeleteVectorIndex(ctx context.Context, indexID string) error {
	return c.doJSON(ctx, call{op: "delete_index", kind: entities.KindIndex, target: indexID, method: http.MethodDelete, path: "/vector_stores/" + url.PathEscape(indexID)}, nil, nil)
}

// CreateAssistant creates an assistant whose file_search tool reads indexID.
func (c *Client) CreateAssistant(ctx context.Context, indexID string, spec entities.AssistantSpec) (entities.Assistant, error) {
	cl := call{op: "create_assistant", kind: entities.KindConfig, method: http.MethodPost, path: "/assistants"}
	req := assistantRequest{
		Name:         spec.Name,
		Instructions: spec.Instructions,
		Model:        spec.Model,
	}
	for _, t := range spec.Tools {
		req.Tools = append(req.Tools, assistantTool{Type: t})
	}
	if indexID != "" {
		req.ToolResources = &toolResources{FileSearch: &fileSearchResources{VectorStoreIDs: []string{indexID}}}
	}

	var a assistantObject
	if err := c.doJSON(ctx, cl, req, &a); err != nil {
		return entities.Assistant{}, err
	}
	bound := a.vectorStoreID()
	if bound == "" {
		bound = indexID
	}
	return entities.Assistant{ID: a.ID, Name: a.Name, Model: a.Model, VectorIndexID: bound}, nil
}

// DeleteAssistant removes an assistant.
func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	return c.doJSON(ctx, call{op: "delete_assistant", kind: entities.KindConfig, target: assistantID, method: http.MethodDelete, path: "/assistants/" + url.PathEscape(assistantID)}, nil, nil)
}

// CreateThread opens a thread seeded with initial messages.
func (c *Client) CreateThread(ctx context.Context, initial []entities.ThreadMessage) (entities.Thread, error) {
	cl := call{op: "create_thread", kind: entities.KindRun, method: http.MethodPost, path: "/threads"}
	req := threadRequest{}
	for _, m := range initial {
		req.Messages = append(req.Messages, messageRequest{Role: roleString(m.Role), Content: m.Content})
	}
	var th threadObject
	if err := c.doJSON(ctx, cl, req, &th); err != nil {
		return entities.Thread{}, err
	}
	return entities.Thread{ID: th.ID}, nil
}

// AddMessage appends a message to an existing thread.
func (c *Client) AddMessage(ctx context.Context, threadID string, msg entities.ThreadMessage) (entities.ThreadMessage, error) {
	cl := call{op: "add_message", kind: entities.KindRun, target: threadID, method: http.MethodPost, path: "/threads/" + url.PathEscape(threadID) + "/messages"}
	var m messageObject
	if err := c.doJSON(ctx, cl, messageRequest{Role: roleString(msg.Role), Content: msg.Content}, &m); err != nil {
		return entities.ThreadMessage{}, err
	}
	out := m.toEntity()
	if out.ThreadID == "" {
		out.ThreadID = threadID
	}
	return out, nil
}

// StartRun starts the assistant on a thread.
func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (entities.Run, error) {
	cl := call{op: "start_run", kind: entities.KindRun, target: threadID, method: http.MethodPost, path: runsPath(threadID)}
	var r runObject
	if err := c.doJSON(ctx, cl, runRequest{AssistantID: assistantID}, &r); err != nil {
		return entities.Run{}, err
	}
	return withThread(r.toEntity(), threadID), nil
}

// PollRunStatus reads the run once. Waiting is the caller's job.
func (c *Client) PollRunStatus(ctx context.Context, threadID, runID string) (entities.Run, error) {
	cl := call{op: "poll_run", kind: entities.KindRun, target: runID, method: http.MethodGet, path: runsPath(threadID) + "/" + url.PathEscape(runID)}
	var r runObject
	if err := c.doJSON(ctx, cl, nil, &r); err != nil {
		return entities.Run{}, err
	}
	return withThread(r.toEntity(), threadID), nil
}

// CancelRun asks the provider to stop a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (entities.Run, error) {
	cl := call{op: "cancel_run", kind: entities.KindRun, target: runID, method: http.MethodPost, path: runsPath(threadID) + "/" + url.PathEscape(runID) + "/cancel"}
	var r runObject
	if err := c.doJSON(ctx, cl, nil, &r); err != nil {
		return entities.Run{}, err
	}
	return withThread(r.toEntity(), threadID), nil
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]entities.ThreadMessage, error) {
	cl := call{op: "list_messages", kind: entities.KindRun, target: threadID, method: http.MethodGet, path: "/threads/" + url.PathEscape(threadID) + "/messages?order=desc"}
	var list messageList
	if err := c.doJSON(ctx, cl, nil, &list); err != nil {
		return nil, err
	}
	out := make([]entities.ThreadMessage, 0, len(list.Data))
	for _, m := range list.Data {
		msg := m.toEntity()
		if msg.ThreadID == "" {
			msg.ThreadID = threadID
		}
		out = append(out, msg)
	}
	return out, nil
}

// doJSON sends payload as JSON and decodes the response into out when set.
func (c *Client) doJSON(ctx context.Context, cl call, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return c.wrap(cl, 0, fmt.Errorf("marshal payload: %w", err))
		}
		body, contentType = buf, "application/json"
	}

	resp, err := c.doRequest(ctx, cl, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp)
		return nil
	}
	if err := json.NewDecoder(resp).Decode(out); err != nil {
		return c.wrap(cl, 0, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, cl call, body io.Reader, contentType string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, cl.method, strings.TrimRight(c.opts.baseURL, "/")+cl.path, body)
	if err != nil {
		return nil, c.wrap(cl, 0, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrap(cl, 0, err)
	}
	pslog.Ctx(ctx).Trace("openai call", "op", cl.op, "method", cl.method, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.wrap(cl, resp.StatusCode, errors.New(apiMessage(resp.Status, data)))
	}
	return resp.Body, nil
}

// wrap classifies a failure of cl. Rejected credentials are auth errors on every call.
// Calls without a kind return other failures unclassified.
func (c *Client) wrap(cl call, status int, err error) error {
	kind := cl.kind
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = entities.KindAuth
	}
	if kind == "" {
		return fmt.Errorf("%s: %w", cl.op, err)
	}
	return &entities.Error{Kind: kind, Op: cl.op, Target: cl.target, Status: status, Err: err}
}

// apiMessage extracts error.message from a provider error body.
func apiMessage(status string, data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return status + ": " + msg
	}
	return status
}

func runsPath(threadID string) string {
	return "/threads/" + url.PathEscape(threadID) + "/runs"
}

func withThread(run entities.Run, threadID string) entities.Run {
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}
	return run
}

func roleString(role entities.Role) string {
	if role == "" {
		return string(entities.RoleUser)
	}
	return string(role)
}
