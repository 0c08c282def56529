package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/storage"
)

var spaghettiLyrics = []string{
	"Lose yourself in Mom's spaghetti. It's ready.",
	"You only get one spaghetti.",
	"Spaghetti only comes once in a lifetime.",
	"Amplified by the fact that I keep on forgetting to make spaghetti.",
	"Tear this motherfucking roof off like two Mom's spaghettis.",
	"Look, if you had Mom's spaghetti, would you capture it, or just let it slip?",
	"There's vomit on his sweater spaghetti, Mom's spaghetti.",
	"He opens his mouth but spaghetti won't come out.",
	"Snap back to spaghetti.",
	"Oh, there goes spaghetti.",
	"He knows he keeps on forgetting Mom's spaghetti.",
	"Mom's spaghetti's mine for the taking.",
	"He goes home and barely knows his own Mom's spaghetti.",
	"Mom's spaghetti's close to post mortem.",
	"No more games. I'ma change what you call spaghetti.",
	"Man these goddamn food stamps don't buy spaghetti.",
	"This may be the only Mom's spaghetti I got.",
	"Make me spaghetti as we move toward a new world order.",
}

// Spaghetti answers .spaghetti with a random lyric.
type Spaghetti struct {
	intn func(n int) int
}

func NewSpaghetti() *Spaghetti {
	return &Spaghetti{intn: rand.IntN}
}

func (s *Spaghetti) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	return reply.Send(spaghettiLyrics[s.intn(len(spaghettiLyrics))], ev.Nick())
}

// LineFinder looks up logged channel lines.
type LineFinder interface {
	RandomLine(nick, channel string) (string, error)
}

// Ask answers .ask <nick> with something nick said before.
type Ask struct {
	lines   LineFinder
	channel string
}

func NewAsk(lines LineFinder, channel string) *Ask {
	return &Ask{lines: lines, channel: channel}
}

func (a *Ask) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	if err := requireArgs(ev, 1, ".ask [nick]"); err != nil {
		return reply.Send(err.Error(), ev.Nick())
	}
	queried := ev.Word(1)

	line, err := a.lines.RandomLine(queried, a.channel)
	if errors.Is(err, storage.ErrNoRecord) {
		return reply.Send("I have no record of that user.", ev.Nick())
	}
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", queried, err)
	}
	return reply.Send(fmt.Sprintf("<%s> %s", queried, line), "")
}

// Imagine repeats the message with every letter's case picked at random.
type Imagine struct {
	intn func(n int) int
}

func NewImagine() *Imagine {
	return &Imagine{intn: rand.IntN}
}

func (h *Imagine) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	var b strings.Builder
	for _, r := range ev.Body() {
		if h.intn(2) == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return reply.Send(b.String(), "")
}

// Reason prevails.
func Reason(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	return reply.Send("REASON WILL PREVAIL", "")
}
