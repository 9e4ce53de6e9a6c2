// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"github.com/google/uuid"
	"pkt.systems/pslog"
)

const (
	sessionCookie   = "filechat_session"
	maxChatBody     = 1 << 20
	multipartMemory = 8 << 20
	shutdownTimeout = 5 * time.Second
)

// Options configure the server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

// Server is the HTTP server for the browser UI and its API.
type Server struct {
	bootstrap    *usecases.BootstrapUseCase
	conversation *usecases.ConversationUseCase
	sessions     *sessionStore
	opts         Options
}

// NewServer creates a new HTTP server.
func NewServer(
	bootstrapUC *usecases.BootstrapUseCase,
	conversationUC *usecases.ConversationUseCase,
	opts Options,
) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	return &Server{
		bootstrap:    bootstrapUC,
		conversation: conversationUC,
		sessions:     newSessionStore(opts.SessionTTL),
		opts:         opts,
	}
}

// Handler returns the routed handler. Requests log through the logger carried by ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// API
	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/session", s.handleDeleteSession)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/stream", s.handleChatStream) // SSE streaming
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return withLogger(corsMiddleware(loggingMiddleware(mux)), pslog.Ctx(ctx))
}

// Start runs the HTTP server until ctx is cancelled, then tears down every session.
func (s *Server) Start(ctx context.Context) error {
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(ctx),
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	sweepEvery := s.opts.SessionTTL / 4
	if sweepEvery < time.Second {
		sweepEvery = time.Second
	}
	go s.sweep(ctx, sweepEvery)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info("filechat server starting", "addr", s.opts.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		s.teardownAll(shutdownCtx, s.sessions.drain(), "session closed")
		return nil
	case err := <-errCh:
		return err
	}
}

// handleIndex renders the upload form and chat UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

type fileView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

type sessionView struct {
	Session    string     `json:"session"`
	Assistant  string     `json:"assistant"`
	Index      string     `json:"index"`
	ThreadMode string     `json:"thread_mode"`
	Files      []fileView `json:"files"`
}

type messageView struct {
	Seq     int64     `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func toMessageView(m entities.DisplayMessage) messageView {
	return messageView{Seq: m.Seq, Role: string(m.Role), Content: m.Content, At: m.At}
}

// handleCreateSession uploads the selected PDFs and bootstraps an assistant.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, entities.UploadError("read_upload", "", fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)).WithStatus(http.StatusRequestEntityTooLarge))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) {
			writeError(w, r, entities.ErrAwaitingDocuments)
			return
		}
		writeError(w, r, entities.UploadError("read_upload", "", err).WithStatus(http.StatusBadRequest))
		return
	}
	defer r.MultipartForm.RemoveAll()

	docs, err := readDocuments(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := uuid.NewString()
	sess, err := s.bootstrap.Bootstrap(r.Context(), usecases.BootstrapRequest{
		SessionID:  id,
		Credential: entities.Credential(r.FormValue("api_key")),
		Documents:  docs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// A second upload from the same browser replaces its session.
	if c, err := r.Cookie(sessionCookie); err == nil {
		if prev := s.sessions.remove(c.Value); prev != nil {
			s.teardownAll(r.Context(), []*usecases.Session{prev}, "session replaced")
		}
	}
	s.sessions.put(id, sess)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	view := sessionView{
		Session:    sess.ID,
		Assistant:  sess.Assistant.ID,
		Index:      sess.Index.ID,
		ThreadMode: string(s.conversation.Mode()),
	}
	for _, f := range sess.Files {
		view.Files = append(view.Files, fileView{ID: f.ID, Name: f.Name, Bytes: f.Bytes})
	}
	pslog.Ctx(r.Context()).Info("session created", "session", sess.ID, "files", len(sess.Files))
	writeJSON(w, http.StatusCreated, view)
}

func readDocuments(headers []*multipart.FileHeader) ([]entities.UploadedDocument, error) {
	if len(headers) == 0 {
		return nil, entities.ErrAwaitingDocuments
	}
	docs := make([]entities.UploadedDocument, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, entities.UploadError("read_upload", fh.Filename, err).WithStatus(http.StatusBadRequest)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, entities.UploadError("read_upload", fh.Filename, err).WithStatus(http.StatusBadRequest)
		}
		docs = append(docs, entities.UploadedDocument{Name: fh.Filename, Data: data})
	}
	return docs, nil
}

// handleDeleteSession closes the caller's session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess := s.sessions.remove(c.Value)
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.bootstrap.Teardown(r.Context(), sess); err != nil {
		writeError(w, r, err)
		return
	}
	pslog.Ctx(r.Context()).Info("session closed", "session", sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(r *http.Request) (*usecases.Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, entities.ErrNoSession
	}
	sess, ok := s.sessions.get(c.Value)
	if !ok {
		return nil, entities.ErrNoSession
	}
	return sess, nil
}

// handleMessages returns the display log of the caller's session.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := s.conversation.History(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// handleChat runs one turn and answers with the reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var message string
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		message = req.Message
	} else {
		message = r.FormValue("message")
	}

	reply, err := s.conversation.Turn(r.Context(), sess, message, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": toMessageView(reply)})
}

// handleChatStream runs one turn and reports its progress as server-sent events.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, r, entities.ErrEmptyPrompt)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Turn calls the observer on this goroutine, so writes do not race.
	reported := false
	_, err = s.conversation.Turn(r.Context(), sess, query, func(ev usecases.TurnEvent) {
		reported = reported || ev.Stage == usecases.StageFailed
		sendSSE(w, flusher, "", turnEventData(ev))
	})
	if err != nil && !reported {
		sendSSE(w, flusher, "", turnEventData(usecases.TurnEvent{Stage: usecases.StageFailed, Err: err}))
	}
	sendSSE(w, flusher, "done", map[string]any{"done": true})
}

func turnEventData(ev usecases.TurnEvent) map[string]any {
	data := map[string]any{"stage": string(ev.Stage)}
	if ev.ThreadID != "" {
		data["thread"] = ev.ThreadID
	}
	if ev.RunID != "" {
		data["run"] = ev.RunID
	}
	if ev.Status != "" {
		data["status"] = string(ev.Status)
	}
	if ev.Reply != nil {
		data["reply"] = toMessageView(*ev.Reply)
	}
	if ev.Err != nil {
		status, body := errorBody(ev.Err)
		body["status"] = status
		data["error"] = body
	}
	return data
}

func sendSSE(w io.Writer, flusher http.Flusher, event string, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		pslog.Ctx(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

// errorBody maps an error onto an HTTP status and a user-facing payload.
func errorBody(err error) (int, map[string]any) {
	body := map[string]any{"error": err.Error()}
	if kind := entities.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	if reason := entities.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}
	return statusFor(err), body
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrAwaitingDocuments), errors.Is(err, entities.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNoSession):
		return http.StatusConflict
	}
	var e *entities.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case entities.KindAuth:
		return http.StatusUnauthorized
	case entities.KindUpload:
		if e.Status == http.StatusRequestEntityTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case entities.KindConfig:
		return http.StatusBadRequest
	case entities.KindIndex:
		return http.StatusBadGateway
	case entities.KindRun:
		if e.Reason == entities.ReasonTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
