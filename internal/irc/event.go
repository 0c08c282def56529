package irc

import (
	"strings"
	"time"
)

// Identity is the nick and ident parsed from a message prefix.
type Identity struct {
	Nick  string
	Ident string
}

// Event is one decoded inbound line. It is never modified after Decode
// returns it, and is shared read-only between concurrent handlers.
type Event struct {
	raw        string
	sender     *Identity
	command    string
	target     string
	body       string
	words      []string
	receivedAt time.Time
}

// Sender returns the parsed prefix identity, or nil for server-originated lines.
func (e *Event) Sender() *Identity {
	if e.sender == nil {
		return nil
	}
	id := *e.sender
	return &id
}

// Nick returns the sender's nick, or "" when the sender is absent.
func (e *Event) Nick() string {
	if e.sender == nil {
		return ""
	}
	return e.sender.Nick
}

// Ident returns the sender's ident, or "" when the sender is absent.
func (e *Event) Ident() string {
	if e.sender == nil {
		return ""
	}
	return e.sender.Ident
}

func (e *Event) Command() string { return e.command }
func (e *Event) Target() string  { return e.target }
func (e *Event) Body() string    { return e.body }
func (e *Event) Raw() string     { return e.raw }

// ReceivedAt is the time the line was read from the transport.
func (e *Event) ReceivedAt() time.Time { return e.receivedAt }

// Words returns a copy of the whitespace-separated body tokens.
func (e *Event) Words() []string {
	out := make([]string, len(e.words))
	copy(out, e.words)
	return out
}

// WordCount is len(Words()).
func (e *Event) WordCount() int { return len(e.words) }

// Word returns the i-th body token, or "" when out of range.
func (e *Event) Word(i int) string {
	if i < 0 || i >= len(e.words) {
		return ""
	}
	return e.words[i]
}

// Rest returns the body after the first n tokens, joined by single spaces.
func (e *Event) Rest(n int) string {
	if n < 0 || n >= len(e.words) {
		return ""
	}
	return strings.Join(e.words[n:], " ")
}
