package service

import (
	"context"

	"smartTodo/internal/models/task"
	"smartTodo/internal/parser"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	List(context.Context) ([]*task.Task, error)
	GetByID(context.Context, string) (*task.Task, error)
	Update(context.Context, string, task.Patch) (*task.Task, error)
	Delete(context.Context, string) error
}

type Parser interface {
	Available() bool
	Parse(context.Context, string) (*parser.Result, error)
}
