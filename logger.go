package prioinv

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with benchmark-specific context. It doubles as an
// [Observer] that turns lifecycle events into log lines.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that writes human-readable lines to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that writes JSON lines to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithMode adds a protocol mode field to the logger.
func (l *Logger) WithMode(mode ProtocolMode) *Logger {
	return &Logger{
		Logger: l.Logger.With("mode", mode.String()),
	}
}

// WithRound adds a round field to the logger.
func (l *Logger) WithRound(round int) *Logger {
	return &Logger{
		Logger: l.Logger.With("round", round),
	}
}

// Observe logs a lifecycle event. Unit events are logged at debug level.
func (l *Logger) Observe(ev Event) {
	attrs := []any{
		"role", ev.Role.String(),
		"mode", ev.Mode.String(),
		"priority", ev.Priority.String(),
	}

	switch ev.Kind {
	case EventUnitStart, EventUnitEnd:
		l.Debug(ev.Kind.String(), append(attrs, "unit", ev.Unit)...)
	case EventBoost, EventRestore:
		l.Info(ev.Kind.String(), append(attrs, "from", ev.From.String(), "to", ev.To.String())...)
	default:
		l.Info(ev.Kind.String(), attrs...)
	}
}

// LogTrialStart logs the header of a trial. The mode and round come from a
// logger scoped with [Logger.WithMode] and [Logger.WithRound].
func (l *Logger) LogTrialStart(ctx context.Context, ceiling Priority) {
	l.InfoContext(ctx, "trial started",
		"ceiling", ceiling.String(),
	)
}

// LogTrialEnd logs the outcome of a trial on a scoped logger.
func (l *Logger) LogTrialEnd(ctx context.Context, s TimingSample, err error) {
	if err != nil {
		l.ErrorContext(ctx, "trial failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "trial completed",
		"elapsed_us", s.Duration.Microseconds(),
		"contender_wait_us", s.ContenderWait.Microseconds(),
		"degraded", s.Degraded,
	)
}

// LogDegraded logs a role that fell back to default scheduling.
func (l *Logger) LogDegraded(ctx context.Context, role Role, err error) {
	l.WarnContext(ctx, "real-time scheduling refused, falling back to default scheduling; timings are not comparable",
		"role", role.String(),
		"error", err,
	)
}
