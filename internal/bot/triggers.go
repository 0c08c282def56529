package bot

import (
	"fmt"
	"regexp"
)

// CommandTrigger fires when the first word of the body equals Token.
type CommandTrigger struct {
	Token   string
	Handler Handler
}

// PatternTrigger fires when Pattern matches anywhere in the body.
type PatternTrigger struct {
	Name    string
	Pattern *regexp.Regexp
	Handler Handler
}

// Triggers is the complete trigger table, fixed at startup.
type Triggers struct {
	Commands []CommandTrigger
	Patterns []PatternTrigger
	// Mention fires when the body starts with the bot's nick.
	Mention Handler
}

// Command appends a command trigger.
func (t *Triggers) Command(token string, h Handler) {
	t.Commands = append(t.Commands, CommandTrigger{Token: token, Handler: h})
}

// Pattern appends a pattern trigger. It panics if expr does not compile,
// like regexp.MustCompile.
func (t *Triggers) Pattern(name, expr string, h Handler) {
	t.Patterns = append(t.Patterns, PatternTrigger{Name: name, Pattern: regexp.MustCompile(expr), Handler: h})
}

func (t Triggers) validate() error {
	seen := make(map[string]bool, len(t.Commands))
	for _, c := range t.Commands {
		if c.Token == "" {
			return fmt.Errorf("command trigger with empty token")
		}
		if c.Handler == nil {
			return fmt.Errorf("command trigger %q has no handler", c.Token)
		}
		if seen[c.Token] {
			return fmt.Errorf("duplicate command trigger %q", c.Token)
		}
		seen[c.Token] = true
	}
	for _, p := range t.Patterns {
		if p.Pattern == nil || p.Handler == nil {
			return fmt.Errorf("pattern trigger %q is incomplete", p.Name)
		}
	}
	return nil
}
