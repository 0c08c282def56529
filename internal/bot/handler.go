// Package bot decides which decoded lines deserve attention and runs the
// handlers bound to them.
package bot

import (
	"context"
	"time"

	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/workers"
)

// Sender is the reply capability handed to handlers. An empty addressee
// posts to the channel as-is; otherwise the message is prefixed with
// "<addressee>: ".
type Sender interface {
	Send(message, addressee string) error
}

// Handler reacts to an actionable event. The event is shared with other
// handlers running at the same time and must be treated as read-only.
// Handlers may block on network calls; they never block the session loop.
type Handler interface {
	Handle(ctx context.Context, ev *irc.Event, reply Sender) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev *irc.Event, reply Sender) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev *irc.Event, reply Sender) error {
	return f(ctx, ev, reply)
}

// MessageLogger persists actionable channel lines. Failures are logged by
// the caller and otherwise ignored.
type MessageLogger interface {
	Record(nick, target, body string, timestamp time.Time) error
}

// ErrorRecorder is told about every failed handler invocation. It must not
// panic.
type ErrorRecorder interface {
	RecordError(context string, err error)
}

// Spawner runs a task on its own goroutine without blocking the caller.
// *workers.Pool satisfies it.
type Spawner interface {
	Submit(name string, task workers.Task) error
}
