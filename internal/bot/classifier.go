package bot

import "github.com/matt0x6f/garybot/internal/irc"

// Classifier decides whether an event is the operator's shutdown signal
// and whether it is worth logging and dispatching.
type Classifier struct {
	botNick        string
	adminNick      string
	channel        string
	shutdownPhrase string
	ignore         map[string]struct{}
}

// NewClassifier builds a classifier from the session configuration.
func NewClassifier(cfg irc.SessionConfig) *Classifier {
	ignore := make(map[string]struct{}, len(cfg.Ignore))
	for _, nick := range cfg.Ignore {
		ignore[nick] = struct{}{}
	}
	return &Classifier{
		botNick:        cfg.Nick,
		adminNick:      cfg.AdminNick,
		channel:        cfg.Channel,
		shutdownPhrase: cfg.ShutdownPhrase,
		ignore:         ignore,
	}
}

// IsShutdownSignal is true for the exact shutdown phrase sent privately to
// the bot by the admin nick.
func (c *Classifier) IsShutdownSignal(ev *irc.Event) bool {
	if ev == nil || ev.Sender() == nil {
		return false
	}
	return ev.Target() == c.botNick &&
		ev.Nick() == c.adminNick &&
		ev.Body() == c.shutdownPhrase
}

// IsActionable is true for a non-empty PRIVMSG to the tracked channel from
// a known, non-ignored sender.
func (c *Classifier) IsActionable(ev *irc.Event) bool {
	if ev == nil {
		return false
	}
	nick := ev.Nick()
	if nick == "" {
		return false
	}
	if _, ignored := c.ignore[nick]; ignored {
		return false
	}
	return ev.Target() == c.channel &&
		ev.Command() == "PRIVMSG" &&
		ev.WordCount() > 0
}
