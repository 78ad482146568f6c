package handlers

import (
	"net/http"
	"time"

	"smartTodo/internal/handlers/dto"
	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	"smartTodo/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	serviceName    = "smart-todo"
	serviceVersion = "1.0.0"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

// Routes is mounted under /api/tasks.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse", h.ParseTask)
	r.Post("/", h.PostTask)
	r.Get("/", h.ListTasks)
	r.Get("/{id}", h.GetTaskByID)
	r.Put("/{id}", h.UpdateTaskByID)
	r.Delete("/{id}", h.DeleteTaskByID)
	return r
}

func (h *TaskHandler) ParseTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.ParseTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	logger.Info("HTTP: calling service to parse task")
	created, err := h.TaskService.ParseAndCreateTask(r.Context(), request.Text)
	if err != nil {
		handleError(w, r, err, "parse_task")
		return
	}

	logger.Info("HTTP_OUT: task created from text",
		zap.String("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithSuccess(w, http.StatusCreated, "Task created successfully", dto.FromTask(created))
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	draft := service.Draft{
		Name:     request.TaskName,
		Assignee: request.Assignee,
	}
	if request.DueDateTime != nil {
		due := request.DueDateTime.Time
		draft.DueDateTime = &due
	}
	if request.Priority != nil {
		priority, ok := task.ParsePriority(*request.Priority)
		if !ok {
			handleBusinessError(w, service.NewValidationError("priority", "must be one of P1, P2, P3, P4"))
			return
		}
		draft.Priority = priority
	}

	logger.Info("HTTP: calling service to create task")
	created, err := h.TaskService.CreateTask(r.Context(), draft)
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.String("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithSuccess(w, http.StatusCreated, "Task created successfully", dto.FromTask(created))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := h.TaskService.ListTasks(r.Context())
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}

	logger.Info("HTTP_OUT: tasks listed",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	found, err := h.TaskService.GetTask(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: task fetched",
		zap.String("task_id", found.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(found))
}

func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")

	var request dto.UpdateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	var options []task.TaskOption
	if request.TaskName != nil {
		options = append(options, task.WithName(*request.TaskName))
	}
	if request.Assignee != nil {
		options = append(options, task.WithAssignee(*request.Assignee))
	}
	if request.DueDateTime != nil {
		options = append(options, task.WithDueDateTime(request.DueDateTime.Time))
	}
	if request.Priority != nil {
		priority, ok := task.ParsePriority(*request.Priority)
		if !ok {
			handleBusinessError(w, service.NewValidationError("priority", "must be one of P1, P2, P3, P4"))
			return
		}
		options = append(options, task.WithPriority(priority))
	}

	logger.Info("HTTP: calling service to update task", zap.String("task_id", id))
	updated, err := h.TaskService.UpdateTask(r.Context(), id, options...)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithSuccess(w, http.StatusOK, "Task updated successfully", dto.FromTask(updated))
}

func (h *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")

	logger.Info("HTTP: calling service to delete task", zap.String("task_id", id))
	if err := h.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: task deleted",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithSuccess(w, http.StatusOK, "Task deleted successfully", nil)
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: health check")

	parserState := "unavailable"
	if h.TaskService.ParserAvailable() {
		parserState = "available"
	}

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: health check failed", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unhealthy"),
			toPayload("service", serviceName),
			toPayload("database", "disconnected"),
			toPayload("parser", parserState),
		)
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "healthy"),
		toPayload("service", serviceName),
		toPayload("message", "API is running successfully"),
		toPayload("database", "connected"),
		toPayload("parser", parserState),
	)
}

func (h *TaskHandler) Info(w http.ResponseWriter, r *http.Request) {
	responseWithJSON(w, http.StatusOK,
		toPayload("message", "Welcome to the Smart To-Do API"),
		toPayload("version", serviceVersion),
		toPayload("tasks", "/api/tasks"),
		toPayload("health", "/health"),
	)
}
