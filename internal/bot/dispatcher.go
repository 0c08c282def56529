package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
)

// Match is one trigger that fired for an event.
type Match struct {
	Name    string
	Handler Handler
}

// Dispatcher maps actionable events to handlers and runs each match on the
// spawner. Matches are independent: a command, any number of patterns and
// the mention trigger may all fire for the same event.
type Dispatcher struct {
	botNick  string
	commands map[string]Handler
	patterns []PatternTrigger
	mention  Handler
	spawner  Spawner
	errors   ErrorRecorder
}

// NewDispatcher validates the trigger table and builds a dispatcher.
func NewDispatcher(botNick string, triggers Triggers, spawner Spawner, errors ErrorRecorder) (*Dispatcher, error) {
	if err := triggers.validate(); err != nil {
		return nil, fmt.Errorf("invalid trigger table: %w", err)
	}
	if spawner == nil || errors == nil {
		return nil, fmt.Errorf("dispatcher needs a spawner and an error recorder")
	}

	commands := make(map[string]Handler, len(triggers.Commands))
	for _, c := range triggers.Commands {
		commands[c.Token] = c.Handler
	}
	patterns := make([]PatternTrigger, len(triggers.Patterns))
	copy(patterns, triggers.Patterns)

	return &Dispatcher{
		botNick:  botNick,
		commands: commands,
		patterns: patterns,
		mention:  triggers.Mention,
		spawner:  spawner,
		errors:   errors,
	}, nil
}

// Matches returns every trigger that fires for ev, patterns first, then
// the mention, then the command.
func (d *Dispatcher) Matches(ev *irc.Event) []Match {
	var matches []Match
	body := ev.Body()

	for _, p := range d.patterns {
		if p.Pattern.MatchString(body) {
			matches = append(matches, Match{Name: p.Name, Handler: p.Handler})
		}
	}
	if d.mention != nil && d.botNick != "" && strings.HasPrefix(body, d.botNick) {
		matches = append(matches, Match{Name: "mention", Handler: d.mention})
	}
	if token := ev.Word(0); token != "" {
		if h, ok := d.commands[token]; ok {
			matches = append(matches, Match{Name: token, Handler: h})
		}
	}
	return matches
}

// Dispatch schedules every matching handler and returns how many were
// accepted by the spawner. It never waits for a handler and never fails.
func (d *Dispatcher) Dispatch(ev *irc.Event, reply Sender) int {
	scheduled := 0
	for _, m := range d.Matches(ev) {
		m := m
		err := d.spawner.Submit(m.Name, func(ctx context.Context) error {
			d.invoke(ctx, m, ev, reply)
			return nil
		})
		if err != nil {
			d.errors.RecordError(fmt.Sprintf("dispatch %s for %s", m.Name, ev.Nick()), err)
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		logger.Log.Debug().Str("nick", ev.Nick()).Int("handlers", scheduled).Msg("Dispatched event")
	}
	return scheduled
}

// invoke is the fault boundary around a single handler.
func (d *Dispatcher) invoke(ctx context.Context, m Match, ev *irc.Event, reply Sender) {
	where := fmt.Sprintf("handler %s: <%s> %s", m.Name, ev.Nick(), ev.Body())
	defer func() {
		if r := recover(); r != nil {
			d.errors.RecordError(where, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := m.Handler.Handle(ctx, ev, reply); err != nil {
		d.errors.RecordError(where, err)
	}
}
