package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// contextKey for request ID
type contextKey string

const RequestIDKey contextKey = "request_id"

var logger *zap.Logger

// Init initializes the structured logger
func Init(level, environment string) error {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	if environment == "development" {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	logger = built
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// WithRequestID adds the request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func withRequestID(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

// LogHTTPRequest logs a served request with structured fields
func LogHTTPRequest(ctx context.Context, method, path string, status int, latencyMs, size int64) {
	GetLogger().Info("http_request", withRequestID(ctx, []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Int64("latency_ms", latencyMs),
		zap.Int64("size_bytes", size),
	})...)
}

// LogUpstreamCall logs the classified result of one upstream attempt.
// Never pass the credential here.
func LogUpstreamCall(ctx context.Context, endpoint, operation, outcome string, status int, latencyMs int64) {
	GetLogger().Info("upstream_call", withRequestID(ctx, []zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("operation", operation),
		zap.String("outcome", outcome),
		zap.Int("upstream_status", status),
		zap.Int64("latency_ms", latencyMs),
	})...)
}

// LogUpstreamError logs upstream errors with context
func LogUpstreamError(ctx context.Context, upstream string, err error) {
	GetLogger().Error("upstream_error", withRequestID(ctx, []zap.Field{
		zap.String("upstream", upstream),
		zap.Error(err),
	})...)
}

// LogRejected logs a request refused before any upstream call
func LogRejected(ctx context.Context, endpoint string, reason error) {
	GetLogger().Warn("request_rejected", withRequestID(ctx, []zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("reason", reason.Error()),
	})...)
}

// LogHTTPServerStart logs HTTP server startup
func LogHTTPServerStart(addr string, tls bool) {
	GetLogger().Info("http_server_start",
		zap.String("listen_addr", addr),
		zap.Bool("tls", tls),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
