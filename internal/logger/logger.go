package logger

import (
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "smart-todo"

// Logger is replaced by Init; until then log calls are discarded.
var Logger = zap.NewNop()

func newConfig(development bool) zap.Config {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	config.InitialFields = map[string]any{"service": serviceName}
	return config
}

// Init builds the process logger. Production output is JSON on stderr.
func Init(development bool) error {
	built, err := newConfig(development).Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	Logger = built
	return nil
}

func Sync() {
	_ = Logger.Sync()
}

func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

func Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	Logger.Log(lvl, msg, fields...)
}

// Error attaches err as the "error" field when it is not nil.
func Error(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	Logger.Error(msg, fields...)
}

func HttpRequestInfo(r *http.Request, msg string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+5)
	all = append(all,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("query", r.URL.RawQuery),
		zap.String("client_ip", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)
	Logger.Info(msg, append(all, fields...)...)
}
