package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
)

// LoopState is the state of the session loop.
type LoopState int

const (
	Running LoopState = iota
	ShuttingDown
)

func (s LoopState) String() string {
	if s == ShuttingDown {
		return "shutting_down"
	}
	return "running"
}

// Session is what the loop needs from the transport owner. *irc.Session
// satisfies it.
type Session interface {
	Sender
	ReceiveLine() string
	LivenessCheck(ctx context.Context, raw string) (bool, error)
	RejoinIfRemoved(ctx context.Context, raw string) (bool, error)
	KeepaliveRespond(raw string) (bool, error)
	Shutdown(farewellTarget string) error
}

// Runner is the single-threaded session loop. Each line is fully handled,
// connection repair first, before the next one is read.
type Runner struct {
	session    Session
	classifier *Classifier
	dispatcher *Dispatcher
	messages   MessageLogger
	adminNick  string
	now        func() time.Time
	state      LoopState
}

// NewRunner wires the loop together. The farewell on shutdown goes to adminNick.
func NewRunner(session Session, classifier *Classifier, dispatcher *Dispatcher, messages MessageLogger, adminNick string) *Runner {
	return &Runner{
		session:    session,
		classifier: classifier,
		dispatcher: dispatcher,
		messages:   messages,
		adminNick:  adminNick,
		now:        time.Now,
		state:      Running,
	}
}

// State returns the loop state. Only meaningful from the loop's goroutine
// or after Run returns.
func (r *Runner) State() LoopState {
	return r.state
}

// Run processes lines until the shutdown signal arrives (returns nil), ctx
// is cancelled, or the session is closed underneath it.
func (r *Runner) Run(ctx context.Context) error {
	logger.Log.Info().Msg("Session loop started")
	for r.state == Running {
		if err := r.Step(ctx); err != nil {
			logger.Log.Info().Err(err).Msg("Session loop stopped")
			return err
		}
	}
	logger.Log.Info().Msg("Session loop finished on shutdown signal")
	return nil
}

// Step handles exactly one inbound line.
func (r *Runner) Step(ctx context.Context) error {
	raw := r.session.ReceiveLine()
	receivedAt := r.now()
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := r.session.LivenessCheck(ctx, raw); err != nil {
		return fmt.Errorf("failed to restore connection: %w", err)
	}
	if _, err := r.session.RejoinIfRemoved(ctx, raw); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// a broken transport shows up as an empty read next iteration
		logger.Log.Warn().Err(err).Msg("Failed to rejoin channel")
	}
	if _, err := r.session.KeepaliveRespond(raw); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to answer keep-alive")
	}

	ev, ok := irc.Decode(raw, receivedAt)
	if !ok {
		return nil
	}

	if r.classifier.IsShutdownSignal(ev) {
		logger.Log.Info().Str("from", ev.Nick()).Msg("Shutdown signal received")
		if err := r.session.Shutdown(r.adminNick); err != nil {
			logger.Log.Warn().Err(err).Msg("Shutdown was not clean")
		}
		r.state = ShuttingDown
		return nil
	}

	if !r.classifier.IsActionable(ev) {
		return nil
	}

	if err := r.messages.Record(ev.Nick(), ev.Target(), ev.Body(), ev.ReceivedAt()); err != nil {
		logger.Log.Warn().Err(err).Str("nick", ev.Nick()).Msg("Failed to log channel message")
	}
	r.dispatcher.Dispatch(ev, r.session)
	return nil
}
