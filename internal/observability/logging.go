// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
}

// NewRepoLogger creates a new RepoLogger for the given table. A nil logger
// falls back to slog.Default().
func NewRepoLogger(tableName string, logger *slog.Logger) *RepoLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLogger{tableName: tableName, logger: logger}
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("trace_id", TraceIDFromContext(ctx)),
		slog.String("error", err.Error()),
	)
}

// LogServiceCall logs a mutating service call together with its outcome.
func LogServiceCall(ctx context.Context, logger *slog.Logger, service, method string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	fields := append([]any{
		slog.String("service", service),
		slog.String("method", method),
	}, attrs...)
	if err != nil {
		fields = append(fields, slog.String("error", err.Error()))
		logger.WarnContext(ctx, "service call failed", fields...)
		return
	}
	logger.InfoContext(ctx, "service call", fields...)
}

// JobRun tracks a single run of a periodic job.
type JobRun struct {
	name   string
	start  time.Time
	logger *slog.Logger
}

// StartJob logs the start of a periodic job run.
func StartJob(ctx context.Context, logger *slog.Logger, name string) *JobRun {
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "job started", slog.String("job", name))
	return &JobRun{name: name, start: time.Now(), logger: logger}
}

// End logs the outcome of the job and records job metrics.
func (j *JobRun) End(ctx context.Context, affected int, err error) {
	fields := []any{
		slog.String("job", j.name),
		slog.Int("affected", affected),
		slog.Duration("elapsed", time.Since(j.start)),
	}
	if err != nil {
		JobRuns.WithLabelValues(j.name, "error").Inc()
		fields = append(fields, slog.String("error", err.Error()))
		j.logger.ErrorContext(ctx, "job failed", fields...)
		return
	}
	JobRuns.WithLabelValues(j.name, "ok").Inc()
	JobAffectedRows.WithLabelValues(j.name).Add(float64(affected))
	j.logger.InfoContext(ctx, "job completed", fields...)
}
