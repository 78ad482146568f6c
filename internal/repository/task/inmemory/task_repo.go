package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	repo "smartTodo/internal/repository"

	"github.com/google/uuid"
)

type TaskStorage struct {
	storage map[string]*task.Task
	mtx     *sync.RWMutex
	ids     []string
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[string]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []string{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is always available")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToCreate.ID = uuid.NewString()
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}
	if taskToCreate.UpdatedAt.Before(taskToCreate.CreatedAt) {
		taskToCreate.UpdatedAt = taskToCreate.CreatedAt
	}

	s.storage[taskToCreate.ID] = clone(taskToCreate)
	s.ids = append(s.ids, taskToCreate.ID)
	return nil
}

func (s *TaskStorage) List(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*task.Task, 0, len(s.ids))
	for _, id := range s.ids {
		res = append(res, clone(s.storage[id]))
	}
	return res, nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(taskToGet), nil
}

func (s *TaskStorage) Update(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToUpdate, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}

	patch.Apply(taskToUpdate, time.Now().UTC())
	return clone(taskToUpdate), nil
}

func (s *TaskStorage) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	if ind := slices.Index(s.ids, id); ind >= 0 {
		s.ids = slices.Delete(s.ids, ind, ind+1)
	}
	return nil
}

// stored tasks never escape, callers get copies
func clone(t *task.Task) *task.Task {
	c := *t
	if t.Assignee != nil {
		v := *t.Assignee
		c.Assignee = &v
	}
	if t.DueDateTime != nil {
		v := *t.DueDateTime
		c.DueDateTime = &v
	}
	if t.OriginalText != nil {
		v := *t.OriginalText
		c.OriginalText = &v
	}
	return &c
}
