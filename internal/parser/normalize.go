package parser

import (
	"strings"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
)

// NormalizeDueDateTime resolves s in loc and returns it in UTC. Anything that
// does not parse yields nil.
func NormalizeDueDateTime(s *string, loc *time.Location) *time.Time {
	if s == nil {
		return nil
	}
	value := strings.TrimSpace(*s)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	parsed, err := dateparse.ParseIn(value, loc)
	if err != nil {
		logger.Warn("Parser: dropping unparseable due date", zap.String("due_date_time", value), zap.Error(err))
		return nil
	}

	due := parsed.UTC().Truncate(time.Millisecond)
	return &due
}

// NormalizePriority maps the hint to P1..P4, defaulting to P3.
func NormalizePriority(hint *string) task.Priority {
	if hint == nil {
		return task.DefaultPriority
	}
	if p, ok := task.ParsePriority(*hint); ok {
		return p
	}
	return task.DefaultPriority
}

func normalizeAssignee(s *string) *string {
	if s == nil {
		return nil
	}
	value := strings.TrimSpace(*s)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	value = task.Truncate(value, task.MaxAssigneeLength)
	return &value
}

func normalizeName(s string) string {
	return task.Truncate(strings.TrimSpace(s), task.MaxNameLength)
}
