package task

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength         = 200
	MaxAssigneeLength     = 100
	MaxOriginalTextLength = 500
)

type Task struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"task_name" db:"task_name"`
	Assignee     *string    `json:"assignee" db:"assignee"`
	DueDateTime  *time.Time `json:"due_date_time" db:"due_date_time"`
	Priority     Priority   `json:"priority" db:"priority"`
	OriginalText *string    `json:"original_text" db:"original_text"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

type Priority string

const PriorityP1 Priority = "P1"
const PriorityP2 Priority = "P2"
const PriorityP3 Priority = "P3"
const PriorityP4 Priority = "P4"

const DefaultPriority = PriorityP3

func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}

// ParsePriority matches s against P1..P4 ignoring case and surrounding spaces.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// FieldError names the field that broke an invariant.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (t *Task) Validate() error {
	if err := validateName(t.Name); err != nil {
		return err
	}
	if err := validateOptional("assignee", t.Assignee, MaxAssigneeLength); err != nil {
		return err
	}
	if err := validateOptional("original_text", t.OriginalText, MaxOriginalTextLength); err != nil {
		return err
	}
	if !t.Priority.Valid() {
		return &FieldError{Field: "priority", Reason: "must be one of P1, P2, P3, P4"}
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &FieldError{Field: "task_name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &FieldError{Field: "task_name", Reason: "must be at most 200 characters"}
	}
	return nil
}

func validateOptional(field string, value *string, limit int) error {
	if value == nil {
		return nil
	}
	if utf8.RuneCountInString(*value) > limit {
		return &FieldError{Field: field, Reason: "too long"}
	}
	return nil
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
