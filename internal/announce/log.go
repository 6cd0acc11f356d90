package announce

import (
	"context"
	"log/slog"
)

// LogAnnouncer writes announcements to the log. Used when no chat sink is
// configured.
type LogAnnouncer struct {
	logger *slog.Logger
}

func NewLogAnnouncer(logger *slog.Logger) *LogAnnouncer {
	return &LogAnnouncer{logger: logger}
}

func (a *LogAnnouncer) Announce(ctx context.Context, text string) error {
	for _, part := range Split(text, MaxMessageLen) {
		a.logger.InfoContext(ctx, "announce", "text", part)
	}
	return nil
}

func (a *LogAnnouncer) Check(ctx context.Context) error { return nil }

func (a *LogAnnouncer) Close() error { return nil }
