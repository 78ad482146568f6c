package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"smartTodo/internal/logger"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

// decodeJSON reads the body into dst, answering 415/400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
