package handlers

import (
	"errors"
	"net/http"

	"smartTodo/internal/logger"
	"smartTodo/internal/service"

	"go.uber.org/zap"
)

// handleError writes business errors as they are and hides everything else
// behind a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, err) {
		return
	}

	logger.Error("HTTP: service error", err,
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
}

func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	payload := []Payload{
		toPayload("success", false),
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
	}
	if len(businessErr.Details) > 0 {
		payload = append(payload, toPayload("details", businessErr.Details))
	}
	responseWithJSON(w, statusCode, payload...)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeParseFailed:
		return http.StatusBadRequest
	case service.CodeParserUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
