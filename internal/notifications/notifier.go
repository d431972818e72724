package notifications

import "context"

// Notice is a user-visible message about an operation's outcome: the
// action that was attempted and a human-readable cause on failure.
type Notice struct {
	Title  string
	Detail string
	Err    bool
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}
