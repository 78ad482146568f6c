package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smartTodo/internal/models/task"

	"github.com/araddon/dateparse"
)

type ParseTaskRequest struct {
	Text string `json:"text"`
}

type CreateTaskRequest struct {
	TaskName    string     `json:"task_name"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDateTime *Timestamp `json:"due_date_time,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
}

// UpdateTaskRequest fields left out (or null) keep their stored value.
type UpdateTaskRequest struct {
	TaskName    *string    `json:"task_name,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDateTime *Timestamp `json:"due_date_time,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
}

func (r UpdateTaskRequest) IsEmpty() bool {
	return r.TaskName == nil && r.Assignee == nil && r.DueDateTime == nil && r.Priority == nil
}

// Timestamp accepts RFC 3339 as well as naive "2006-01-02T15:04:05", read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

type TaskResponse struct {
	ID           string  `json:"id"`
	TaskName     string  `json:"task_name"`
	Assignee     *string `json:"assignee"`
	DueDateTime  *string `json:"due_date_time"`
	Priority     string  `json:"priority"`
	OriginalText *string `json:"original_text"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func FromTask(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		TaskName:     t.Name,
		Assignee:     t.Assignee,
		Priority:     string(t.Priority),
		OriginalText: t.OriginalText,
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
	}
	if t.DueDateTime != nil {
		due := formatTime(*t.DueDateTime)
		resp.DueDateTime = &due
	}
	return resp
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
