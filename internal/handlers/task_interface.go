package handlers

import (
	"context"

	"smartTodo/internal/models/task"
	"smartTodo/internal/service"
)

type TaskService interface {
	HealthCheck(context.Context) error
	ParserAvailable() bool
	ParseAndCreateTask(context.Context, string) (*task.Task, error)
	CreateTask(context.Context, service.Draft) (*task.Task, error)
	ListTasks(context.Context) ([]*task.Task, error)
	GetTask(context.Context, string) (*task.Task, error)
	UpdateTask(context.Context, string, ...task.TaskOption) (*task.Task, error)
	DeleteTask(context.Context, string) error
}
