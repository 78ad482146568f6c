package handlers

import (
	"encoding/json"
	"net/http"

	"smartTodo/internal/logger"
)

const (
	codeBadRequest           = "BAD_REQUEST"
	codeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	codeInternal             = "INTERNAL_ERROR"
)

type Payload struct {
	Key     string
	Payload any
}

func toPayload(key string, pl any) Payload {
	return Payload{Key: key, Payload: pl}
}

func toJSON(storage map[string]any, payload Payload) {
	storage[payload.Key] = payload.Payload
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("HTTP: failed to encode response", err)
	}
}

func responseWithJSON(w http.ResponseWriter, code int, payload ...Payload) {
	storage := make(map[string]any)
	for _, pl := range payload {
		toJSON(storage, pl)
	}
	writeJSON(w, code, storage)
}

func responseWithSuccess(w http.ResponseWriter, code int, message string, data any) {
	payload := []Payload{
		toPayload("success", true),
		toPayload("message", message),
	}
	if data != nil {
		payload = append(payload, toPayload("data", data))
	}
	responseWithJSON(w, code, payload...)
}

func responseWithError(w http.ResponseWriter, code int, errCode string, message string) {
	responseWithJSON(w, code,
		toPayload("success", false),
		toPayload("error", errCode),
		toPayload("message", message),
	)
}
