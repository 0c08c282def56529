package irc

import (
	"fmt"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
)

// Decode parses one raw line of the form
//
//	:<identity> <COMMAND> <target> :<body>
//
// and reports false for anything else. Lines that do not match are not
// errors; callers drop them.
func Decode(raw string, receivedAt time.Time) (*Event, bool) {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" || line[0] != ':' {
		return nil, false
	}

	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		return nil, false
	}
	if msg.Source == "" || len(msg.Params) != 2 || !isVerb(msg.Command) {
		return nil, false
	}

	// ParseLine tolerates repeated spaces, tags and a missing trailing
	// colon. Rendering the parts back and comparing keeps the accepted
	// grammar exact.
	target, body := msg.Params[0], msg.Params[1]
	if line != fmt.Sprintf(":%s %s %s :%s", msg.Source, msg.Command, target, body) {
		return nil, false
	}

	ev := &Event{
		raw:        line,
		command:    msg.Command,
		target:     target,
		body:       body,
		words:      Tokenize(body),
		receivedAt: receivedAt,
	}
	// A prefix without '!' is a server name, not a user.
	if strings.Contains(msg.Source, "!") {
		nick, ident := SplitIdentity(msg.Source)
		ev.sender = &Identity{Nick: nick, Ident: ident}
	}
	return ev, true
}

func isVerb(command string) bool {
	if command == "" {
		return false
	}
	for _, r := range command {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// SplitIdentity splits "nick!ident@host" on the first '!' and then the
// first '@'. Without a '!' the whole input is the nick and the ident is "".
func SplitIdentity(identity string) (nick, ident string) {
	nick, rest, found := strings.Cut(identity, "!")
	if !found {
		return identity, ""
	}
	ident, _, _ = strings.Cut(rest, "@")
	return nick, ident
}

// Tokenize splits body on single spaces, discarding empty tokens.
func Tokenize(body string) []string {
	parts := strings.Split(body, " ")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			words = append(words, p)
		}
	}
	return words
}

// KeepAliveReply returns the PONG answering a bare PING probe. The probe's
// origin token is echoed verbatim.
func KeepAliveReply(raw string) (string, bool) {
	line := strings.TrimRight(raw, "\r\n")
	msg, err := ircmsg.ParseLine(line)
	if err != nil || msg.Source != "" || msg.Command != "PING" {
		return "", false
	}
	origin := strings.TrimLeft(line[len("PING"):], " ")
	if origin == "" {
		return "PONG", true
	}
	return "PONG " + origin, true
}

// IsKickOf reports whether raw removes nick from channel.
func IsKickOf(raw, channel, nick string) bool {
	msg, err := ircmsg.ParseLine(strings.TrimRight(raw, "\r\n"))
	if err != nil || msg.Command != "KICK" || len(msg.Params) < 3 {
		return false
	}
	return msg.Params[0] == channel && msg.Params[1] == nick
}

// NickLine, UserLine and JoinLine make up the registration sequence.
func NickLine(nick string) string { return "NICK " + nick }

func UserLine(nick string) string { return fmt.Sprintf("USER %s 0 * :%s", nick, nick) }

func JoinLine(channel string) string { return "JOIN " + channel }

// PrivmsgLine renders a chat message, always with a trailing parameter.
func PrivmsgLine(target, message string) string {
	return fmt.Sprintf("PRIVMSG %s :%s", target, message)
}

// Addressed prefixes message with "<nick>: " when nick is set.
func Addressed(message, nick string) string {
	if nick == "" {
		return message
	}
	return nick + ": " + message
}
