package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

var (
	ErrUnavailable = errors.New("parser is not available")
	ErrParseFailed = errors.New("failed to parse task")
)

// Extraction is what the model returned, before normalization.
type Extraction struct {
	TaskName     string  `json:"task_name"`
	Assignee     *string `json:"assignee"`
	DueDateTime  *string `json:"due_date_time"`
	PriorityHint *string `json:"priority_hint"`
}

// Result holds fields ready to be stored.
type Result struct {
	Name        string
	Assignee    *string
	DueDateTime *time.Time
	Priority    task.Priority
	Extraction  Extraction
}

type Parser struct {
	model       llms.Model
	now         func() time.Time
	loc         *time.Location
	callOptions []llms.CallOption
}

type Option func(*Parser)

func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithLocation sets the zone relative dates and naive timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithCallOptions(opts ...llms.CallOption) Option {
	return func(p *Parser) {
		p.callOptions = opts
	}
}

// New returns a parser backed by model. A nil model gives a parser that
// reports itself unavailable.
func New(model llms.Model, opts ...Option) *Parser {
	p := &Parser{
		model:       model,
		now:         time.Now,
		loc:         time.UTC,
		callOptions: []llms.CallOption{llms.WithTemperature(0)},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Available() bool {
	return p != nil && p.model != nil
}

func (p *Parser) Parse(ctx context.Context, text string) (*Result, error) {
	if !p.Available() {
		return nil, ErrUnavailable
	}

	start := time.Now()
	prompt := BuildPrompt(p.now().In(p.loc), text)

	raw, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt, p.callOptions...)
	if err != nil {
		logger.Error("Parser: model call failed", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	extraction, err := decodeExtraction(raw)
	if err != nil {
		logger.Warn("Parser: unusable model response", zap.String("raw", raw), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	logger.Debug("Parser: extracted task", zap.Duration("ms", time.Since(start)), zap.String("task_name", extraction.TaskName))
	return p.normalize(extraction), nil
}

func (p *Parser) normalize(e Extraction) *Result {
	return &Result{
		Name:        normalizeName(e.TaskName),
		Assignee:    normalizeAssignee(e.Assignee),
		DueDateTime: NormalizeDueDateTime(e.DueDateTime, p.loc),
		Priority:    NormalizePriority(e.PriorityHint),
		Extraction:  e,
	}
}

func decodeExtraction(raw string) (Extraction, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return Extraction{}, fmt.Errorf("decoding response: %w", err)
	}
	if fields == nil {
		return Extraction{}, errors.New("response is not a JSON object")
	}

	name := scalarString(fields["task_name"])
	if name == nil || strings.TrimSpace(*name) == "" {
		return Extraction{}, errors.New("task_name is missing")
	}

	return Extraction{
		TaskName:     *name,
		Assignee:     scalarString(fields["assignee"]),
		DueDateTime:  scalarString(fields["due_date_time"]),
		PriorityHint: scalarString(fields["priority_hint"]),
	}, nil
}

// scalarString renders JSON scalars as text; null, objects and arrays give nil.
func scalarString(v any) *string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return nil
	}
	return &s
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
