package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	"smartTodo/internal/parser"
	rep "smartTodo/internal/repository"

	"go.uber.org/zap"
)

// business rules live here; handlers only translate

// Draft is a task typed in by the user without going through the parser.
type Draft struct {
	Name        string
	Assignee    *string
	DueDateTime *time.Time
	Priority    task.Priority
}

type TaskService struct {
	repo   TaskRepository
	parser Parser
	now    func() time.Time
}

type Option func(*TaskService)

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

func NewTaskService(repo TaskRepository, parser Parser, opts ...Option) *TaskService {
	s := &TaskService{
		repo:   repo,
		parser: parser,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

func (s *TaskService) ParserAvailable() bool {
	return s.parser != nil && s.parser.Available()
}

// ParseAndCreateTask runs the text through the parser and stores the result.
// Nothing is stored when parsing fails.
func (s *TaskService) ParseAndCreateTask(ctx context.Context, text string) (*task.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("text", "must not be empty")
	}
	if utf8.RuneCountInString(text) > task.MaxOriginalTextLength {
		return nil, NewValidationError("text", fmt.Sprintf("must be at most %d characters", task.MaxOriginalTextLength))
	}
	if !s.ParserAvailable() {
		logger.Warn("Service: parse requested while parser is unavailable")
		return nil, NewParserUnavailable()
	}

	result, err := s.parser.Parse(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrUnavailable):
			return nil, NewParserUnavailable()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("parsing task: %w", err)
		}
		logger.Info("Service: parsing failed", zap.String("text", text), zap.Error(err))
		return nil, NewParseFailed(err)
	}

	now := s.timestamp()
	original := text
	newTask := &task.Task{
		Name:         result.Name,
		Assignee:     result.Assignee,
		DueDateTime:  result.DueDateTime,
		Priority:     result.Priority,
		OriginalText: &original,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := newTask.Validate(); err != nil {
		logger.Warn("Service: parsed task breaks record rules", zap.Error(err))
		return nil, NewParseFailed(err)
	}

	if err := s.repo.Create(ctx, newTask); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	logger.Info("Service: task created from text", zap.String("task_id", newTask.ID))
	return newTask, nil
}

func (s *TaskService) CreateTask(ctx context.Context, draft Draft) (*task.Task, error) {
	priority := draft.Priority
	if priority == "" {
		priority = task.DefaultPriority
	}

	now := s.timestamp()
	newTask := &task.Task{
		Name:        strings.TrimSpace(draft.Name),
		Assignee:    trimOptional(draft.Assignee),
		DueDateTime: normalizeTime(draft.DueDateTime),
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := newTask.Validate(); err != nil {
		return nil, toValidationError(err)
	}

	if err := s.repo.Create(ctx, newTask); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	logger.Info("Service: task created", zap.String("task_id", newTask.ID))
	return newTask, nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]*task.Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id))
			return nil, NewNotFound(id)
		}
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error) {
	patch := task.NewPatch(options...)
	if patch.IsEmpty() {
		return nil, NewBusinessError(CodeValidation, "No fields to update")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Assignee != nil {
		assignee := strings.TrimSpace(*patch.Assignee)
		if assignee == "" {
			return nil, NewValidationError("assignee", "must not be blank")
		}
		patch.Assignee = &assignee
	}
	patch.DueDateTime = normalizeTime(patch.DueDateTime)

	if err := patch.Validate(); err != nil {
		return nil, toValidationError(err)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id))
			return nil, NewNotFound(id)
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}

	logger.Info("Service: task updated", zap.String("task_id", id))
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id))
			return NewNotFound(id)
		}
		return fmt.Errorf("deleting task: %w", err)
	}

	logger.Info("Service: task deleted", zap.String("task_id", id))
	return nil
}

func (s *TaskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func toValidationError(err error) error {
	var fieldErr *task.FieldError
	if errors.As(err, &fieldErr) {
		return NewValidationError(fieldErr.Field, fieldErr.Reason)
	}
	return NewValidationError("task", err.Error())
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Millisecond)
	return &v
}
