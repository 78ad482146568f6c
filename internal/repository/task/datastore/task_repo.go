package datastore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	repo "smartTodo/internal/repository"

	"cloud.google.com/go/datastore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	kind      = "Task"
	slowQuery = 150 * time.Millisecond
)

// entity is the stored shape of a task. Empty strings and the zero time mean
// the optional field is absent.
type entity struct {
	TaskName     string    `datastore:"task_name"`
	Assignee     string    `datastore:"assignee,omitempty"`
	DueDateTime  time.Time `datastore:"due_date_time,omitempty"`
	Priority     string    `datastore:"priority"`
	OriginalText string    `datastore:"original_text,noindex,omitempty"`
	CreatedAt    time.Time `datastore:"created_at"`
	UpdatedAt    time.Time `datastore:"updated_at"`
}

func toEntity(t *task.Task) *entity {
	e := &entity{
		TaskName:  t.Name,
		Priority:  string(t.Priority),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Assignee != nil {
		e.Assignee = *t.Assignee
	}
	if t.DueDateTime != nil {
		e.DueDateTime = *t.DueDateTime
	}
	if t.OriginalText != nil {
		e.OriginalText = *t.OriginalText
	}
	return e
}

func (e *entity) toTask(key *datastore.Key) *task.Task {
	priority := task.Priority(e.Priority)
	if !priority.Valid() {
		priority = task.DefaultPriority
	}
	t := &task.Task{
		ID:        strconv.FormatInt(key.ID, 10),
		Name:      e.TaskName,
		Priority:  priority,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	if e.Assignee != "" {
		assignee := e.Assignee
		t.Assignee = &assignee
	}
	if !e.DueDateTime.IsZero() {
		due := e.DueDateTime.UTC()
		t.DueDateTime = &due
	}
	if e.OriginalText != "" {
		original := e.OriginalText
		t.OriginalText = &original
	}
	return t
}

func (e *entity) apply(patch task.Patch, now time.Time) {
	if patch.Name != nil {
		e.TaskName = *patch.Name
	}
	if patch.Assignee != nil {
		e.Assignee = *patch.Assignee
	}
	if patch.DueDateTime != nil {
		e.DueDateTime = *patch.DueDateTime
	}
	if patch.Priority != nil {
		e.Priority = string(*patch.Priority)
	}
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.UpdatedAt = now
}

type Storage struct {
	client *datastore.Client
}

// New opens a client for projectID. credentialsFile may be empty, in which case
// application default credentials (or DATASTORE_EMULATOR_HOST) are used.
func New(ctx context.Context, projectID, credentialsFile string) (*Storage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		logger.Error("Repository: failed to create Datastore client", err)
		return nil, fmt.Errorf("creating datastore client: %w", err)
	}

	logger.Info("Repository: connected to Datastore", zap.String("project_id", projectID))
	return &Storage{client: client}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	q := datastore.NewQuery(kind).KeysOnly().Limit(1)
	if _, err := s.client.GetAll(ctx, q, nil); err != nil {
		logger.Error("Repository: Datastore health check failed", err)
		return fmt.Errorf("datastore query: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	key, err := s.client.Put(ctx, datastore.IncompleteKey(kind, nil), toEntity(taskToCreate))
	if err != nil {
		logger.Error("Repository: failed to put task", err)
		return fmt.Errorf("putting task: %w", err)
	}
	taskToCreate.ID = strconv.FormatInt(key.ID, 10)

	warnIfSlow(start)
	return nil
}

func (s *Storage) List(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	var entities []*entity
	keys, err := s.client.GetAll(ctx, datastore.NewQuery(kind).Order("created_at"), &entities)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(entities))
	for i, e := range entities {
		tasks = append(tasks, e.toTask(keys[i]))
	}

	warnIfSlow(start)
	return tasks, nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	key, ok := parseKey(id)
	if !ok {
		return nil, repo.ErrNotFound
	}

	var e entity
	if err := s.client.Get(ctx, key, &e); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return e.toTask(key), nil
}

func (s *Storage) Update(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	start := time.Now()

	key, ok := parseKey(id)
	if !ok {
		return nil, repo.ErrNotFound
	}

	var e entity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		e.apply(patch, time.Now().UTC().Truncate(time.Microsecond))
		_, err := tx.Put(key, &e)
		return err
	})
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to update task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("updating task: %w", err)
	}

	warnIfSlow(start)
	return e.toTask(key), nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	key, ok := parseKey(id)
	if !ok {
		return repo.ErrNotFound
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e entity
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return repo.ErrNotFound
		}
		logger.Error("Repository: failed to delete task", err, zap.String("task_id", id))
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func parseKey(id string) (*datastore.Key, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, false
	}
	return datastore.IDKey(kind, n, nil), true
}

func warnIfSlow(start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: slow Datastore call", zap.Duration("ms", time.Since(start)))
	}
}
