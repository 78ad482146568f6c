package parser_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"smartTodo/internal/models/task"
	"smartTodo/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	if resp := args.Get(0); resp != nil {
		return resp.(*llms.ContentResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func promptOf(messages []llms.MessageContent) string {
	var sb strings.Builder
	for _, m := range messages {
		for _, part := range m.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
	}
	return sb.String()
}

// Thursday, May 29, 2025 14:30 UTC
var anchor = time.Date(2025, 5, 29, 14, 30, 0, 0, time.UTC)

func newParser(model llms.Model) *parser.Parser {
	return parser.New(model, parser.WithClock(func() time.Time { return anchor }))
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		response     string
		wantName     string
		wantAssignee *string
		wantDue      *time.Time
		wantPriority task.Priority
	}{
		{
			name:         "relative date and assignee",
			input:        "Buy groceries tomorrow assigned to John",
			response:     `{"task_name": "Buy groceries", "assignee": "John", "due_date_time": "2025-05-30T09:00:00", "priority_hint": null}`,
			wantName:     "Buy groceries",
			wantAssignee: ptr("John"),
			wantDue:      ptr(time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)),
			wantPriority: task.PriorityP3,
		},
		{
			name:         "priority only",
			input:        "Ship release P1",
			response:     `{"task_name": "Ship release", "assignee": null, "due_date_time": null, "priority_hint": "P1"}`,
			wantName:     "Ship release",
			wantPriority: task.PriorityP1,
		},
		{
			name:         "fenced json with lowercase priority",
			input:        "Schedule meeting with Marketing team for next Tuesday at 3pm p2",
			response:     "```json\n{\"task_name\": \"Schedule meeting with Marketing team\", \"assignee\": null, \"due_date_time\": \"2025-06-03T15:00:00\", \"priority_hint\": \" p2 \"}\n```",
			wantName:     "Schedule meeting with Marketing team",
			wantDue:      ptr(time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC)),
			wantPriority: task.PriorityP2,
		},
		{
			name:         "bare fence",
			input:        "Water plants",
			response:     "```\n{\"task_name\": \"Water plants\"}\n```",
			wantName:     "Water plants",
			wantPriority: task.PriorityP3,
		},
		{
			name:         "garbage date and unknown priority",
			input:        "Finish essay by next blue moon urgent",
			response:     `{"task_name": "Finish essay", "assignee": "", "due_date_time": "next blue moon", "priority_hint": "urgent"}`,
			wantName:     "Finish essay",
			wantPriority: task.PriorityP3,
		},
		{
			name:         "impossible calendar date",
			input:        "Pay rent",
			response:     `{"task_name": "Pay rent", "assignee": "  ", "due_date_time": "2025-13-45T99:00:00", "priority_hint": "P5"}`,
			wantName:     "Pay rent",
			wantPriority: task.PriorityP3,
		},
		{
			name:         "non-string scalars tolerated",
			input:        "Call 911 about the noise",
			response:     `{"task_name": "  Call about the noise  ", "assignee": 42, "due_date_time": false, "priority_hint": 1}`,
			wantName:     "Call about the noise",
			wantAssignee: ptr("42"),
			wantPriority: task.PriorityP3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(MockModel)
			model.On("GenerateContent", mock.Anything, mock.Anything).Return(reply(tt.response), nil).Once()

			result, err := newParser(model).Parse(context.Background(), tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, result.Name)
			assert.Equal(t, tt.wantAssignee, result.Assignee)
			if tt.wantDue == nil {
				assert.Nil(t, result.DueDateTime)
			} else {
				require.NotNil(t, result.DueDateTime)
				assert.True(t, tt.wantDue.Equal(*result.DueDateTime), "got %s", result.DueDateTime)
				assert.Equal(t, time.UTC, result.DueDateTime.Location())
			}
			assert.Equal(t, tt.wantPriority, result.Priority)
			model.AssertExpectations(t)
		})
	}
}

func TestParser_Parse_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "not json", response: "Sure! The task is to buy milk."},
		{name: "json array", response: `[{"task_name": "Buy milk"}]`},
		{name: "json null", response: `null`},
		{name: "missing task name", response: `{"assignee": "John"}`},
		{name: "blank task name", response: `{"task_name": "   "}`},
		{name: "object task name", response: `{"task_name": {"text": "Buy milk"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(MockModel)
			model.On("GenerateContent", mock.Anything, mock.Anything).Return(reply(tt.response), nil).Once()

			result, err := newParser(model).Parse(context.Background(), "Buy milk")
			assert.ErrorIs(t, err, parser.ErrParseFailed)
			assert.Nil(t, result)
		})
	}
}

func TestParser_Parse_ProviderError(t *testing.T) {
	model := new(MockModel)
	providerErr := errors.New("quota exceeded")
	model.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, providerErr).Once()

	_, err := newParser(model).Parse(context.Background(), "Buy milk")

	assert.ErrorIs(t, err, parser.ErrParseFailed)
	assert.ErrorIs(t, err, providerErr)
	model.AssertNumberOfCalls(t, "GenerateContent", 1)
}

func TestParser_Unavailable(t *testing.T) {
	p := parser.New(nil)
	assert.False(t, p.Available())

	_, err := p.Parse(context.Background(), "Buy milk")
	assert.ErrorIs(t, err, parser.ErrUnavailable)
}

func TestParser_PromptCarriesAnchorAndInput(t *testing.T) {
	model := new(MockModel)
	model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(messages []llms.MessageContent) bool {
		prompt := promptOf(messages)
		return strings.Contains(prompt, "Today is Thursday, May 29, 2025 at 02:30 PM") &&
			strings.Contains(prompt, `"Buy groceries tomorrow assigned to John"`)
	})).Return(reply(`{"task_name": "Buy groceries"}`), nil).Once()

	_, err := newParser(model).Parse(context.Background(), "Buy groceries tomorrow assigned to John")
	require.NoError(t, err)
	model.AssertExpectations(t)
}

func TestParser_WithLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	model := new(MockModel)
	model.On("GenerateContent", mock.Anything, mock.Anything).
		Return(reply(`{"task_name": "Standup", "due_date_time": "2025-05-30T09:00:00"}`), nil).Once()

	p := parser.New(model,
		parser.WithClock(func() time.Time { return anchor }),
		parser.WithLocation(loc),
	)
	result, err := p.Parse(context.Background(), "Standup tomorrow 9am")
	require.NoError(t, err)

	require.NotNil(t, result.DueDateTime)
	assert.Equal(t, time.Date(2025, 5, 30, 13, 0, 0, 0, time.UTC), *result.DueDateTime)
}

func TestParser_TruncatesLongFields(t *testing.T) {
	longName := strings.Repeat("n", task.MaxNameLength+20)
	longAssignee := strings.Repeat("a", task.MaxAssigneeLength+5)

	model := new(MockModel)
	model.On("GenerateContent", mock.Anything, mock.Anything).
		Return(reply(`{"task_name": "`+longName+`", "assignee": "`+longAssignee+`"}`), nil).Once()

	result, err := newParser(model).Parse(context.Background(), "long one")
	require.NoError(t, err)

	assert.Len(t, result.Name, task.MaxNameLength)
	assert.Len(t, *result.Assignee, task.MaxAssigneeLength)
	assert.Equal(t, longName, result.Extraction.TaskName)
}

func ptr[T any](v T) *T { return &v }
