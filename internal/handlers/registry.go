package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/logger"
	"github.com/matt0x6f/garybot/internal/storage"
)

// LineStore is what the built-in handlers need from the channel log.
type LineStore interface {
	LineFinder
	HistorySource
}

var _ LineStore = (*storage.Storage)(nil)

// Options customizes Register. The zero value uses the public APIs and a
// Gemini generator built from the configured key.
type Options struct {
	Client    *http.Client
	Generator Generator
}

// Register adds every built-in handler whose requirements are configured
// to triggers.
func Register(ctx context.Context, triggers *bot.Triggers, cfg *config.Config, lines LineStore, opts Options) error {
	timeout := cfg.Workers.HandlerTimeout
	wrap := func(h bot.Handler) bot.Handler { return WithTimeout(h, timeout) }
	channel := cfg.Bot.Channel

	triggers.Command(".spaghetti", wrap(NewSpaghetti()))
	triggers.Command(".ask", wrap(NewAsk(lines, channel)))

	apod := NewAPOD(cfg.APIKeys.NASA)
	apod.Client = opts.Client
	triggers.Command(".apod", wrap(apod))

	triggers.Pattern("imagine", `^imagine unironically`, wrap(NewImagine()))
	triggers.Pattern("reason", `\breason\b`, bot.HandlerFunc(Reason))

	if key := cfg.APIKeys.Wolfram; key != "" {
		w := NewWolfram(key)
		w.Client = opts.Client
		triggers.Command(".wa", wrap(w))
	} else {
		logger.Log.Warn().Str("handler", ".wa").Msg("No Wolfram|Alpha key configured, handler disabled")
	}

	if key := cfg.APIKeys.Odds; key != "" {
		sb := NewSportsbook(key)
		sb.Client = opts.Client
		triggers.Command(".sb", wrap(sb))
	} else {
		logger.Log.Warn().Str("handler", ".sb").Msg("No odds API key configured, handler disabled")
	}

	if key := cfg.APIKeys.YouTube; key != "" {
		yt := NewYouTube(key)
		yt.Client = opts.Client
		triggers.Pattern("youtube", YouTubePattern, wrap(yt))
	} else {
		logger.Log.Warn().Str("handler", "youtube").Msg("No YouTube key configured, handler disabled")
	}

	generator := opts.Generator
	if generator == nil && cfg.APIKeys.LLM != "" {
		g, err := NewGeminiGenerator(ctx, cfg.APIKeys.LLM, cfg.Chat.Model)
		if err != nil {
			return fmt.Errorf("failed to set up chat: %w", err)
		}
		generator = g
	}
	if generator == nil {
		logger.Log.Warn().Str("handler", "mention").Msg("No LLM key configured, chat replies disabled")
		return nil
	}
	prompt, err := LoadPrompt(cfg.Chat.PromptFile)
	if err != nil {
		return err
	}
	triggers.Mention = wrap(NewChat(generator, lines, channel, cfg.Bot.Nick, prompt, cfg.Chat.ContextLines))
	return nil
}
