package task

import (
	"time"
)

// Patch carries the fields of a partial update; nil means "leave as is".
type Patch struct {
	Name        *string
	Assignee    *string
	DueDateTime *time.Time
	Priority    *Priority
}

type TaskOption func(*Patch)

func WithName(name string) TaskOption {
	return func(p *Patch) {
		p.Name = &name
	}
}

func WithAssignee(assignee string) TaskOption {
	return func(p *Patch) {
		p.Assignee = &assignee
	}
}

func WithDueDateTime(dueDateTime time.Time) TaskOption {
	if dueDateTime.IsZero() {
		return nil
	}
	return func(p *Patch) {
		p.DueDateTime = &dueDateTime
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(p *Patch) {
		p.Priority = &priority
	}
}

func NewPatch(options ...TaskOption) Patch {
	var p Patch
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&p)
	}
	return p
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Assignee == nil && p.DueDateTime == nil && p.Priority == nil
}

func (p Patch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if err := validateOptional("assignee", p.Assignee, MaxAssigneeLength); err != nil {
		return err
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &FieldError{Field: "priority", Reason: "must be one of P1, P2, P3, P4"}
	}
	return nil
}

// Apply merges the non-nil fields into t and stamps UpdatedAt.
func (p Patch) Apply(t *Task, now time.Time) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Assignee != nil {
		assignee := *p.Assignee
		t.Assignee = &assignee
	}
	if p.DueDateTime != nil {
		due := *p.DueDateTime
		t.DueDateTime = &due
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.UpdatedAt = now
}
