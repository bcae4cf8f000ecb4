// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

var logLevel = new(slog.LevelVar)

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLevel changes the minimum level of GlobalLogger. Unknown names select info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	CorrelationID LogContextKey = "correlation_id"
)

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

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

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{
		tableName: tableName,
		logger:    GlobalLogger,
	}
}

// LogRead logs a repository read operation.
func (l *RepoLogger) LogRead(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "read", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "update", fields)
}

func (l *RepoLogger) log(ctx context.Context, operation string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.DebugContext(ctx, "repository "+operation, attrs...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// JobLogger provides structured logging for one run of a batch job.
type JobLogger struct {
	job    string
	runID  string
	start  time.Time
	logger *Logger
}

// StartJob logs the beginning of a job run and returns a context carrying
// the run ID as correlation ID.
func StartJob(ctx context.Context, job string, start time.Time) (context.Context, *JobLogger) {
	l := &JobLogger{
		job:    job,
		runID:  GenerateCorrelationID(),
		start:  start,
		logger: GlobalLogger,
	}
	ctx = WithCorrelationID(ctx, l.runID)
	l.logger.InfoContext(ctx, "job started",
		slog.String("job", job),
		slog.String("correlation_id", l.runID),
		slog.Time("at", start),
	)
	return ctx, l
}

// RunID identifies this run in logs.
func (l *JobLogger) RunID() string {
	return l.runID
}

// Stage logs the outcome of one pipeline stage.
func (l *JobLogger) Stage(ctx context.Context, name string, affected int) {
	l.logger.InfoContext(ctx, "job stage",
		slog.String("job", l.job),
		slog.String("stage", name),
		slog.Int("affected", affected),
		slog.String("correlation_id", l.runID),
	)
}

// Skipped logs a run that did no work and why.
func (l *JobLogger) Skipped(ctx context.Context, reason string) {
	l.logger.InfoContext(ctx, "job skipped",
		slog.String("job", l.job),
		slog.String("reason", reason),
		slog.String("correlation_id", l.runID),
	)
}

// Completed logs a finished run with its wall-clock duration.
func (l *JobLogger) Completed(ctx context.Context, elapsed time.Duration, fields map[string]interface{}) {
	attrs := []any{
		slog.String("job", l.job),
		slog.Duration("duration", elapsed),
		slog.String("correlation_id", l.runID),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "job completed", attrs...)
}

// Failed logs a run that stopped on err.
func (l *JobLogger) Failed(ctx context.Context, elapsed time.Duration, err error) {
	l.logger.ErrorContext(ctx, "job failed",
		slog.String("job", l.job),
		slog.Duration("duration", elapsed),
		slog.String("error", err.Error()),
		slog.String("correlation_id", l.runID),
	)
}
