// Package handlers holds the bot's built-in channel commands and
// auto-replies.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/irc"
)

var (
	ErrMissingArgs = errors.New("missing arguments")
	ErrBadStatus   = errors.New("unexpected status code")
)

// UsageError reports a command called without its required arguments.
// Handlers send its text back to the caller rather than failing.
type UsageError struct {
	Syntax string
}

func (e *UsageError) Error() string {
	return "Missing arguments. Correct usage is: " + e.Syntax
}

// Is makes errors.Is(err, ErrMissingArgs) hold.
func (e *UsageError) Is(target error) bool { return target == ErrMissingArgs }

// requireArgs checks that ev has at least n words after the command.
func requireArgs(ev *irc.Event, n int, syntax string) error {
	if ev.WordCount()-1 < n {
		return &UsageError{Syntax: syntax}
	}
	return nil
}

// WithTimeout bounds every call to h by d.
func WithTimeout(h bot.Handler, d time.Duration) bot.Handler {
	if d <= 0 {
		return h
	}
	return bot.HandlerFunc(func(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h.Handle(ctx, ev, reply)
	})
}

func get(ctx context.Context, client *http.Client, base, path string, query url.Values) (*http.Response, error) {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", base+path, err)
	}
	return resp, nil
}

func getJSON(ctx context.Context, client *http.Client, base, path string, query url.Values, out interface{}) error {
	resp, err := get(ctx, client, base, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: %w %d", base+path, ErrBadStatus, resp.StatusCode)
	}
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
