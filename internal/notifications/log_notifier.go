package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier renders notices to the structured log. A UI embedding the
// session store would swap in its own toast implementation.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}

	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	if notice.Err {
		n.log.ErrorContext(ctx, "notice", "title", notice.Title, "detail", notice.Detail)
		return
	}

	n.log.InfoContext(ctx, "notice", "title", notice.Title, "detail", notice.Detail)
}
