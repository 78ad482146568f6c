package service

import "fmt"

const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeParseFailed       = "PARSE_FAILED"
	CodeParserUnavailable = "PARSER_UNAVAILABLE"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("Task with ID %s not found", id),
		Details: map[string]any{
			"resource": "task",
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Invalid value for field '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewParseFailed(err error) *BusinessError {
	return &BusinessError{
		Code:    CodeParseFailed,
		Message: "Failed to parse the task. Please try rephrasing your input.",
		Err:     err,
	}
}

func NewParserUnavailable() *BusinessError {
	return &BusinessError{
		Code:    CodeParserUnavailable,
		Message: "Task parsing service is not available. Please check the LLM configuration.",
	}
}
