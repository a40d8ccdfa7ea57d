// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetGlobalLogger replaces the logger used by repository, audit, and feed loggers.
func SetGlobalLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key for the request correlation ID.
const CorrelationID LogContextKey = "correlation_id"

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableRepoLogging bool
	EnableWSLogging   bool
}

var (
	// Config holds the current logging configuration.
	Config = LoggingConfig{
		EnableRepoLogging: true,
		EnableWSLogging:   true,
	}
)

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

func withFields(attrs []any, fields map[string]interface{}) []any {
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

func (l *RepoLogger) log(ctx context.Context, operation string, fields map[string]interface{}) {
	if !Config.EnableRepoLogging {
		return
	}
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	GlobalLogger.DebugContext(ctx, "repository "+operation, withFields(attrs, fields)...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "create", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "update", fields)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "delete", fields)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	if !Config.EnableRepoLogging || err == nil {
		return
	}
	GlobalLogger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// AuditLogger records privileged decisions: moderation outcomes, reviews, and flag attempts.
type AuditLogger struct {
	component string
}

// NewAuditLogger creates an AuditLogger tagged with the emitting component.
func NewAuditLogger(component string) *AuditLogger {
	return &AuditLogger{component: component}
}

// LogDecision records an allow/deny decision for an actor and action.
func (l *AuditLogger) LogDecision(ctx context.Context, actorID uint, action string, allowed bool, fields map[string]interface{}) {
	attrs := []any{
		slog.String("audit", l.component),
		slog.Uint64("actor_id", uint64(actorID)),
		slog.String("action", action),
		slog.Bool("allowed", allowed),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	attrs = withFields(attrs, fields)
	if allowed {
		GlobalLogger.InfoContext(ctx, "audit decision", attrs...)
		return
	}
	GlobalLogger.WarnContext(ctx, "audit decision", attrs...)
}

// LogEvent records a completed privileged or scoring event.
func (l *AuditLogger) LogEvent(ctx context.Context, actorID uint, event string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("audit", l.component),
		slog.Uint64("actor_id", uint64(actorID)),
		slog.String("event", event),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	GlobalLogger.InfoContext(ctx, "audit event", withFields(attrs, fields)...)
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint) {
	if !Config.EnableWSLogging {
		return
	}
	GlobalLogger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	if !Config.EnableWSLogging {
		return
	}
	GlobalLogger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogLifecycle logs a WebSocket hub lifecycle event.
func (l *WSLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	if !Config.EnableWSLogging {
		return
	}
	attrs := []any{
		slog.String("hub", l.hubName),
		slog.String("event", event),
	}
	GlobalLogger.InfoContext(ctx, "websocket lifecycle", withFields(attrs, fields)...)
}

// LogAsyncOperationError logs an error in an asynchronous operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	GlobalLogger.ErrorContext(ctx, "async operation failed", withFields(attrs, fields)...)
}
