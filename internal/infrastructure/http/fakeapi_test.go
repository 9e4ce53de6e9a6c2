package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const goodKey = "sk-good"

// fakeAssistantsAPI emulates the slice of the Assistants v2 API a session uses.
type fakeAssistantsAPI struct {
	mu        sync.Mutex
	runStatus string // status reported by run polls, completed by default
	files     int
	threads   int
	runs      int
	lastUser  map[string]string // thread id -> last user message
	runThread map[string]string // run id -> thread id
	deleted   []string
}

func newFakeAssistantsAPI(t *testing.T) (*fakeAssistantsAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAssistantsAPI{
		runStatus: "completed",
		lastUser:  make(map[string]string),
		runThread: make(map[string]string),
	}
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAssistantsAPI) setRunStatus(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runStatus = status
}

func (a *fakeAssistantsAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"data": []any{}})
	})
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		data, _ := io.ReadAll(f)
		a.mu.Lock()
		a.files++
		id := fmt.Sprintf("file-%d", a.files)
		a.mu.Unlock()
		reply(w, map[string]any{"id": id, "filename": hdr.Filename, "bytes": len(data), "purpose": r.FormValue("purpose")})
	})
	mux.HandleFunc("POST /v1/vector_stores", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name    string   `json:"name"`
			FileIDs []string `json:"file_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		n := len(req.FileIDs)
		reply(w, map[string]any{
			"id":          "vs_1",
			"name":        req.Name,
			"status":      "completed",
			"file_counts": map[string]int{"completed": n, "total": n},
		})
	})
	mux.HandleFunc("POST /v1/assistants", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, map[string]any{
			"id":             "asst_1",
			"name":           req["name"],
			"model":          req["model"],
			"tool_resources": req["tool_resources"],
		})
	})
	mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		a.threads++
		id := fmt.Sprintf("thread_%d", a.threads)
		if len(req.Messages) > 0 {
			a.lastUser[id] = req.Messages[len(req.Messages)-1].Content
		}
		a.mu.Unlock()
		reply(w, map[string]any{"id": id})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		thread := r.PathValue("thread")
		a.mu.Lock()
		a.lastUser[thread] = req.Content
		a.mu.Unlock()
		reply(w, map[string]any{"id": "msg_user", "thread_id": thread, "role": "user"})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		thread := r.PathValue("thread")
		a.mu.Lock()
		a.runs++
		id := fmt.Sprintf("run_%d", a.runs)
		a.runThread[id] = thread
		a.mu.Unlock()
		reply(w, map[string]any{"id": id, "thread_id": thread, "assistant_id": "asst_1", "status": "queued"})
	})
	mux.HandleFunc("GET /v1/threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		status := a.runStatus
		a.mu.Unlock()
		body := map[string]any{"id": r.PathValue("run"), "thread_id": r.PathValue("thread"), "status": status}
		if status == "failed" {
			body["last_error"] = map[string]string{"code": "server_error", "message": "model overloaded"}
		}
		reply(w, body)
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs/{run}/cancel", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"id": r.PathValue("run"), "thread_id": r.PathValue("thread"), "status": "cancelling"})
	})
	mux.HandleFunc("GET /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		thread := r.PathValue("thread")
		a.mu.Lock()
		question := a.lastUser[thread]
		var runID string
		for id, t := range a.runThread {
			if t == thread {
				runID = id
			}
		}
		a.mu.Unlock()
		reply(w, map[string]any{"data": []any{
			map[string]any{
				"id":         "msg_reply",
				"thread_id":  thread,
				"run_id":     runID,
				"role":       "assistant",
				"created_at": time.Now().Unix(),
				"content": []any{
					map[string]any{"type": "text", "text": map[string]string{"value": "answer to: " + question}},
				},
			},
		}})
	})
	for _, pattern := range []string{"DELETE /v1/files/{id}", "DELETE /v1/vector_stores/{id}", "DELETE /v1/assistants/{id}"} {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			a.deleted = append(a.deleted, r.PathValue("id"))
			a.mu.Unlock()
			reply(w, map[string]any{"id": r.PathValue("id"), "deleted": true})
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			fail(w, http.StatusUnauthorized, "Incorrect API key provided")
			return
		}
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			fail(w, http.StatusBadRequest, "missing beta header")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": msg, "type": "invalid_request_error"}})
}
