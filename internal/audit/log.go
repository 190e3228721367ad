package audit

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/sheetgate/internal/logging"
)

// LogRecorder writes entries to the request-scoped slog logger.
type LogRecorder struct{}

var _ Recorder = LogRecorder{}

// NewLogRecorder returns the default recorder used when no database is
// configured.
func NewLogRecorder() LogRecorder {
	return LogRecorder{}
}

func (LogRecorder) Record(ctx context.Context, p Params) {
	e := newEntry(ctx, p)
	logging.FromContext(ctx).LogAttrs(ctx, levelFor(e), "audit",
		entryAttrs(e)...,
	)
}

func levelFor(e Entry) slog.Level {
	if e.Severity == SeverityHigh {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func entryAttrs(e Entry) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", string(e.Action)),
		slog.String("outcome", string(e.Outcome)),
		slog.String("severity", string(e.Severity)),
	}
	if e.SubjectID != "" {
		attrs = append(attrs, slog.String("subject", e.SubjectID))
	}
	if e.Email != "" {
		attrs = append(attrs, slog.String("email", e.Email))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip", e.IPAddress))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

const levelError = slog.LevelError

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
