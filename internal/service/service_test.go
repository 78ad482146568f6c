package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"smartTodo/internal/models/task"
	"smartTodo/internal/parser"
	"smartTodo/internal/repository"
	"smartTodo/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository is a mocked repository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) Create(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) List(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockParser is a mocked parsing service
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockParser) Parse(ctx context.Context, text string) (*parser.Result, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.Result), args.Error(1)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)
var _ service.Parser = (*MockParser)(nil)

var fixedNow = time.Date(2025, 5, 29, 14, 30, 0, 123456789, time.UTC)

func newService(repo *MockTaskRepository, p *MockParser) *service.TaskService {
	return service.NewTaskService(repo, p, service.WithClock(func() time.Time { return fixedNow }))
}

func ptr[T any](v T) *T { return &v }

func assertBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	var busErr *service.BusinessError
	require.True(t, errors.As(err, &busErr), "expected BusinessError, got %v", err)
	assert.Equal(t, code, busErr.Code)
}

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskRepository)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			svc := newService(mockRepo, new(MockParser))
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "service health check")
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_ParseAndCreateTask(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)
	input := "Buy groceries tomorrow assigned to John"

	t.Run("success - stores parsed fields and original text", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockParser := new(MockParser)

		mockParser.On("Available").Return(true)
		mockParser.On("Parse", mock.Anything, input).Return(&parser.Result{
			Name:        "Buy groceries",
			Assignee:    ptr("John"),
			DueDateTime: &due,
			Priority:    task.PriorityP3,
		}, nil)
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
			return t.Name == "Buy groceries" &&
				*t.Assignee == "John" &&
				t.DueDateTime.Equal(due) &&
				t.Priority == task.PriorityP3 &&
				*t.OriginalText == input &&
				t.CreatedAt.Equal(fixedNow.Truncate(time.Millisecond)) &&
				t.UpdatedAt.Equal(t.CreatedAt)
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*task.Task).ID = "665f1c2ab3a1c2d3e4f5a6b7"
		}).Return(nil)

		result, err := newService(mockRepo, mockParser).ParseAndCreateTask(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, "665f1c2ab3a1c2d3e4f5a6b7", result.ID)
		assert.Equal(t, input, *result.OriginalText)
		mockRepo.AssertExpectations(t)
		mockParser.AssertExpectations(t)
	})

	t.Run("error - parser unavailable, no provider call", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockParser := new(MockParser)
		mockParser.On("Available").Return(false)

		_, err := newService(mockRepo, mockParser).ParseAndCreateTask(ctx, input)

		assertBusinessCode(t, err, service.CodeParserUnavailable)
		mockParser.AssertNotCalled(t, "Parse", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("error - parse failure stores nothing", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockParser := new(MockParser)
		mockParser.On("Available").Return(true)
		mockParser.On("Parse", mock.Anything, "asdf").
			Return(nil, fmt.Errorf("%w: task_name is missing", parser.ErrParseFailed))

		_, err := newService(mockRepo, mockParser).ParseAndCreateTask(ctx, "asdf")

		assertBusinessCode(t, err, service.CodeParseFailed)
		assert.ErrorIs(t, err, parser.ErrParseFailed)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("error - repository failure is internal", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockParser := new(MockParser)
		mockParser.On("Available").Return(true)
		mockParser.On("Parse", mock.Anything, input).Return(&parser.Result{Name: "Buy groceries", Priority: task.PriorityP3}, nil)
		mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := newService(mockRepo, mockParser).ParseAndCreateTask(ctx, input)

		require.Error(t, err)
		var busErr *service.BusinessError
		assert.False(t, errors.As(err, &busErr))
	})
}

func TestTaskService_ParseAndCreateTask_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \t\n"},
		{name: "too long", text: strings.Repeat("x", task.MaxOriginalTextLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			mockParser := new(MockParser)

			_, err := newService(mockRepo, mockParser).ParseAndCreateTask(context.Background(), tt.text)

			assertBusinessCode(t, err, service.CodeValidation)
			mockParser.AssertNotCalled(t, "Parse", mock.Anything, mock.Anything)
		})
	}
}

func TestTaskService_CreateTask(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		draft        service.Draft
		wantCode     string
		wantPriority task.Priority
	}{
		{
			name:         "defaults priority",
			draft:        service.Draft{Name: "  Pay rent  "},
			wantPriority: task.PriorityP3,
		},
		{
			name:         "keeps explicit priority",
			draft:        service.Draft{Name: "Pay rent", Priority: task.PriorityP1, Assignee: ptr("  ")},
			wantPriority: task.PriorityP1,
		},
		{
			name:     "rejects blank name",
			draft:    service.Draft{Name: "   "},
			wantCode: service.CodeValidation,
		},
		{
			name:     "rejects unknown priority",
			draft:    service.Draft{Name: "Pay rent", Priority: "P9"},
			wantCode: service.CodeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			if tt.wantCode == "" {
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
					return t.Name == "Pay rent" && t.Assignee == nil && t.OriginalText == nil
				})).Return(nil)
			}

			result, err := newService(mockRepo, new(MockParser)).CreateTask(ctx, tt.draft)

			if tt.wantCode != "" {
				assertBusinessCode(t, err, tt.wantCode)
				mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPriority, result.Priority)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_ListTasks(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	tasks := []*task.Task{
		{ID: "1", Name: "Task 1", Priority: task.PriorityP3},
		{ID: "2", Name: "Task 2", Priority: task.PriorityP1},
	}
	mockRepo.On("List", mock.Anything).Return(tasks, nil)

	result, err := newService(mockRepo, new(MockParser)).ListTasks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, tasks, result)
	mockRepo.AssertExpectations(t)
}

func TestTaskService_GetTask(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		existing := &task.Task{ID: "abc", Name: "Test", Priority: task.PriorityP2}
		mockRepo.On("GetByID", mock.Anything, "abc").Return(existing, nil)

		result, err := newService(mockRepo, new(MockParser)).GetTask(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, existing, result)
	})

	t.Run("error - not found", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

		_, err := newService(mockRepo, new(MockParser)).GetTask(ctx, "missing")

		assertBusinessCode(t, err, service.CodeNotFound)
	})
}

func TestTaskService_UpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("success - passes merged patch", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		updated := &task.Task{ID: "abc", Name: "Old", Priority: task.PriorityP1}
		mockRepo.On("Update", mock.Anything, "abc", mock.MatchedBy(func(p task.Patch) bool {
			return p.Name == nil && p.Priority != nil && *p.Priority == task.PriorityP1
		})).Return(updated, nil)

		result, err := newService(mockRepo, new(MockParser)).UpdateTask(ctx, "abc", task.WithPriority(task.PriorityP1))

		require.NoError(t, err)
		assert.Equal(t, task.PriorityP1, result.Priority)
		mockRepo.AssertExpectations(t)
	})

	t.Run("success - trims name and normalizes due date", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		loc := time.FixedZone("UTC+3", 3*60*60)
		mockRepo.On("Update", mock.Anything, "abc", mock.MatchedBy(func(p task.Patch) bool {
			return *p.Name == "New name" &&
				p.DueDateTime.Location() == time.UTC &&
				p.DueDateTime.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		})).Return(&task.Task{ID: "abc"}, nil)

		_, err := newService(mockRepo, new(MockParser)).UpdateTask(ctx, "abc",
			task.WithName("  New name "),
			task.WithDueDateTime(time.Date(2025, 6, 1, 12, 0, 0, 0, loc)),
		)

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("error - empty patch never reaches repository", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)

		_, err := newService(mockRepo, new(MockParser)).UpdateTask(ctx, "abc")

		assertBusinessCode(t, err, service.CodeValidation)
		assert.Contains(t, err.Error(), "No fields to update")
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error - invalid fields", func(t *testing.T) {
		for _, opt := range []task.TaskOption{
			task.WithName("   "),
			task.WithName(strings.Repeat("n", task.MaxNameLength+1)),
			task.WithAssignee(" "),
			task.WithPriority("P0"),
		} {
			mockRepo := new(MockTaskRepository)
			_, err := newService(mockRepo, new(MockParser)).UpdateTask(ctx, "abc", opt)
			assertBusinessCode(t, err, service.CodeValidation)
			mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("error - not found", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("Update", mock.Anything, "missing", mock.Anything).Return(nil, repository.ErrNotFound)

		_, err := newService(mockRepo, new(MockParser)).UpdateTask(ctx, "missing", task.WithName("x"))

		assertBusinessCode(t, err, service.CodeNotFound)
	})
}

func TestTaskService_DeleteTask(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
		wantErr  bool
	}{
		{name: "success"},
		{name: "not found", repoErr: repository.ErrNotFound, wantCode: service.CodeNotFound, wantErr: true},
		{name: "store failure", repoErr: errors.New("timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			mockRepo.On("Delete", mock.Anything, "abc").Return(tt.repoErr)

			err := newService(mockRepo, new(MockParser)).DeleteTask(context.Background(), "abc")

			switch {
			case tt.wantCode != "":
				assertBusinessCode(t, err, tt.wantCode)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_ParserAvailable(t *testing.T) {
	mockParser := new(MockParser)
	mockParser.On("Available").Return(true)
	assert.True(t, newService(new(MockTaskRepository), mockParser).ParserAvailable())

	assert.False(t, service.NewTaskService(new(MockTaskRepository), nil).ParserAvailable())
}
