package openai

import (
	"strings"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
)

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

type vectorStoreRequest struct {
	Name    string   `json:"name,omitempty"`
	FileIDs []string `json:"file_ids"`
}

type vectorStoreFileCounts struct {
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

type vectorStore struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Status     string                `json:"status"`
	FileCounts vectorStoreFileCounts `json:"file_counts"`
}

func (v vectorStore) toEntity(fileIDs []string) entities.VectorIndex {
	return entities.VectorIndex{
		ID:      v.ID,
		Name:    v.Name,
		Status:  entities.IndexStatus(v.Status),
		FileIDs: fileIDs,
		FileCounts: entities.FileCounts{
			InProgress: v.FileCounts.InProgress,
			Completed:  v.FileCounts.Completed,
			Failed:     v.FileCounts.Failed,
			Cancelled:  v.FileCounts.Cancelled,
			Total:      v.FileCounts.Total,
		},
	}
}

type assistantTool struct {
	Type string `json:"type"`
}

type fileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

type toolResources struct {
	FileSearch *fileSearchResources `json:"file_search,omitempty"`
}

type assistantRequest struct {
	Name          string          `json:"name,omitempty"`
	Instructions  string          `json:"instructions,omitempty"`
	Model         string          `json:"model"`
	Tools         []assistantTool `json:"tools,omitempty"`
	ToolResources *toolResources  `json:"tool_resources,omitempty"`
}

type assistantObject struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Model         string         `json:"model"`
	ToolResources *toolResources `json:"tool_resources"`
}

func (a assistantObject) vectorStoreID() string {
	if a.ToolResources == nil || a.ToolResources.FileSearch == nil || len(a.ToolResources.FileSearch.VectorStoreIDs) == 0 {
		return ""
	}
	return a.ToolResources.FileSearch.VectorStoreIDs[0]
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type threadRequest struct {
	Messages []messageRequest `json:"messages,omitempty"`
}

type threadObject struct {
	ID string `json:"id"`
}

type textContent struct {
	Value string `json:"value"`
}

type contentPart struct {
	Type string       `json:"type"`
	Text *textContent `json:"text,omitempty"`
}

type messageObject struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	RunID     string        `json:"run_id"`
	Role      string        `json:"role"`
	CreatedAt int64         `json:"created_at"`
	Content   []contentPart `json:"content"`
}

// JoinText concatenates the text parts, skipping images and other part types.
func (m messageObject) JoinText() string {
	var parts []string
	for _, p := range m.Content {
		if p.Type == "text" && p.Text != nil {
			parts = append(parts, p.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

func (m messageObject) toEntity() entities.ThreadMessage {
	return entities.ThreadMessage{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		RunID:     m.RunID,
		Role:      entities.Role(m.Role),
		Content:   m.JoinText(),
		CreatedAt: time.Unix(m.CreatedAt, 0),
	}
}

type messageList struct {
	Data    []messageObject `json:"data"`
	HasMore bool            `json:"has_more"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runObject struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      string    `json:"status"`
	LastError   *runError `json:"last_error"`
}

func (r runObject) toEntity() entities.Run {
	run := entities.Run{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		AssistantID: r.AssistantID,
		Status:      entities.RunStatus(r.Status),
	}
	if r.LastError != nil {
		run.LastError = r.LastError.Message
		if run.LastError == "" {
			run.LastError = r.LastError.Code
		}
	}
	return run
}
