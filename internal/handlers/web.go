package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircfmt"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/irc"
)

const (
	WolframBaseURL = "https://api.wolframalpha.com"
	NASABaseURL    = "https://api.nasa.gov"
	YouTubeBaseURL = "https://www.googleapis.com"

	wolframMaxAnswer = 400
)

// Wolfram answers .wa <query> with Wolfram|Alpha's short answer.
type Wolfram struct {
	BaseURL string
	Key     string
	Client  *http.Client
}

func NewWolfram(key string) *Wolfram {
	return &Wolfram{BaseURL: WolframBaseURL, Key: key}
}

func (w *Wolfram) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	if err := requireArgs(ev, 1, ".wa [query]"); err != nil {
		return reply.Send(err.Error(), ev.Nick())
	}

	query := url.Values{
		"i":     {ev.Rest(1)},
		"appid": {w.Key},
		"units": {"metric"},
	}
	resp, err := get(ctx, clientOrDefault(w.Client), w.BaseURL, "/v1/result", query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 501 carries a human readable "did not understand" answer
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotImplemented {
		return fmt.Errorf("wolfram: %w %d", ErrBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read wolfram answer: %w", err)
	}

	answer := []rune(string(body))
	if len(answer) > wolframMaxAnswer {
		answer = answer[:wolframMaxAnswer]
	}
	return reply.Send(strings.ReplaceAll(string(answer), "\n", ""), ev.Nick())
}

// APOD answers .apod with a random Astronomy Picture of the Day.
type APOD struct {
	BaseURL string
	Key     string
	Client  *http.Client
}

func NewAPOD(key string) *APOD {
	if key == "" {
		key = "DEMO_KEY"
	}
	return &APOD{BaseURL: NASABaseURL, Key: key}
}

type apodEntry struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	URL   string `json:"url"`
	HDURL string `json:"hdurl"`
}

func (a *APOD) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	var entries []apodEntry
	query := url.Values{"api_key": {a.Key}, "count": {"1"}}
	if err := getJSON(ctx, clientOrDefault(a.Client), a.BaseURL, "/planetary/apod", query, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("apod returned no entries")
	}

	e := entries[0]
	link := e.HDURL
	if link == "" {
		link = e.URL
	}
	msg := ircfmt.Unescape(fmt.Sprintf("$c[light grey,black] AP🪐D $c[grey]%s $c[red]%s: $c[cyan]%s",
		ircfmt.Escape(e.Date), ircfmt.Escape(e.Title), ircfmt.Escape(link)))
	return reply.Send(msg, "")
}

// YouTubePattern matches youtu.be and youtube.com/watch links and captures
// the video id.
const YouTubePattern = `youtu\.be/([\w-]{11})|youtube\.com/watch\?v=([\w-]{11})`

var youtubeLink = regexp.MustCompile(YouTubePattern)

// YouTube posts stats for every video linked in a message.
type YouTube struct {
	BaseURL string
	Key     string
	Client  *http.Client
}

func NewYouTube(key string) *YouTube {
	return &YouTube{BaseURL: YouTubeBaseURL, Key: key}
}

type videoList struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// VideoIDs returns the ids linked in body, in order of appearance.
func VideoIDs(body string) []string {
	var ids []string
	for _, m := range youtubeLink.FindAllStringSubmatch(body, -1) {
		if m[1] != "" {
			ids = append(ids, m[1])
		} else {
			ids = append(ids, m[2])
		}
	}
	return ids
}

func (y *YouTube) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	var failed error
	for _, id := range VideoIDs(ev.Body()) {
		msg, err := y.stats(ctx, id)
		if err == nil {
			err = reply.Send(msg, "")
		}
		if err != nil && failed == nil {
			failed = fmt.Errorf("video %s: %w", id, err)
		}
	}
	return failed
}

func (y *YouTube) stats(ctx context.Context, id string) (string, error) {
	var list videoList
	query := url.Values{
		"id":   {id},
		"key":  {y.Key},
		"part": {"snippet,statistics,contentDetails"},
	}
	if err := getJSON(ctx, clientOrDefault(y.Client), y.BaseURL, "/youtube/v3/videos", query, &list); err != nil {
		return "", err
	}
	if len(list.Items) == 0 {
		return "", fmt.Errorf("no such video")
	}

	v := list.Items[0]
	uploaded := v.Snippet.PublishedAt
	if len(uploaded) > 10 {
		uploaded = uploaded[:10]
	}
	parts := []struct{ label, value string }{
		{"Title", v.Snippet.Title},
		{"Duration", FormatISODuration(v.ContentDetails.Duration)},
		{"Uploader", v.Snippet.ChannelTitle},
		{"Uploaded", uploaded},
		{"Views", v.Statistics.ViewCount},
		{"Likes", v.Statistics.LikeCount},
	}

	fields := []string{"$c[black,white] You$c[white,red]Tube $r"}
	for _, p := range parts {
		fields = append(fields, fmt.Sprintf("$c[light blue]%s: $c[red]%s$r", p.label, ircfmt.Escape(p.value)))
	}
	return ircfmt.Unescape(strings.Join(fields, " | ")), nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// FormatISODuration renders an ISO 8601 duration such as PT1H2M3S as
// 1:02:03. Unparseable input is returned unchanged.
func FormatISODuration(s string) string {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	var n [4]int
	for i := range n {
		if m[i+1] != "" {
			n[i], _ = strconv.Atoi(m[i+1])
		}
	}
	d := time.Duration(n[1])*time.Hour + time.Duration(n[2])*time.Minute + time.Duration(n[3])*time.Second
	h := int(d / time.Hour)
	mnt := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	out := fmt.Sprintf("%d:%02d:%02d", h, mnt, sec)
	switch {
	case n[0] == 1:
		out = "1 day, " + out
	case n[0] > 1:
		out = fmt.Sprintf("%d days, %s", n[0], out)
	}
	return out
}
