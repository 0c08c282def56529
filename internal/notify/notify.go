// Package notify raises desktop notifications for session trouble the
// operator should know about.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/matt0x6f/garybot/internal/events"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
)

// Notifier turns session events into desktop notifications.
type Notifier struct {
	nick string
	show func(title, message string) error
}

// New creates a notifier for the bot running as nick.
func New(nick string) *Notifier {
	return &Notifier{
		nick: nick,
		show: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Register subscribes the notifier to the events it reports.
func (n *Notifier) Register(bus *events.EventBus) {
	bus.Subscribe(irc.EventConnectionLost, n)
	bus.Subscribe(irc.EventChannelKicked, n)
}

// OnEvent implements events.Subscriber.
func (n *Notifier) OnEvent(event events.Event) {
	title, message, ok := n.describe(event)
	if !ok {
		return
	}
	if err := n.show(title, message); err != nil {
		logger.Log.Debug().Err(err).Str("event", event.Type).Msg("Desktop notification failed")
	}
}

func (n *Notifier) describe(event events.Event) (title, message string, ok bool) {
	server, _ := event.Data["server"].(string)
	switch event.Type {
	case irc.EventConnectionLost:
		return n.nick + " disconnected", fmt.Sprintf("Lost connection to %s, reconnecting.", server), true
	case irc.EventChannelKicked:
		channel, _ := event.Data["channel"].(string)
		return n.nick + " was kicked", fmt.Sprintf("Kicked from %s on %s, rejoining.", channel, server), true
	}
	return "", "", false
}
