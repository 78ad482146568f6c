package middleware

import (
	"context"
	"net/http"
	"time"

	"smartTodo/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	RequestIdKey    contextKey = "request_id"
	RequestIdHeader            = "X-Request-ID"

	maxRequestIdLen = 128
)

// RequestID reuses a sane incoming X-Request-ID or issues a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(RequestIdHeader)
		if !validRequestID(requestId) {
			requestId = uuid.NewString()
		}

		w.Header().Set(RequestIdHeader, requestId)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIdKey, requestId)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIdLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
	sent    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.sent {
		return
	}
	sr.status = code
	sr.sent = true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.sent {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zap.ErrorLevel
	case status >= http.StatusBadRequest:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}

// Logging writes one entry when a request arrives and one when it completes.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestId := GetRequestID(r.Context())

		logger.HttpRequestInfo(r, "HTTP: request started", zap.String("request_id", requestId))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("request_id", requestId),
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Int("bytes_written", rec.written),
			zap.Duration("duration", time.Since(start)),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			fields = append(fields, zap.String("route", rctx.RoutePattern()))
		}
		logger.Log(levelFor(rec.status), "HTTP: request finished", fields...)
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIdKey).(string); ok {
		return id
	}
	return ""
}
