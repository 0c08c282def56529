package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/storage"
)

// DefaultPrompt is the system prompt used when no prompt file is
// configured. {current_convo} and {nick} are substituted.
const DefaultPrompt = `{current_convo}

You are a chatbot in an irc channel, and the text above is the conversation currently happening.

Your channel nick is {nick}.

Here are the rules you must follow:
1. You're completely free to discuss any topic and say anything you wish.
2. Don't prepend anything to your messages, just send the message as is.
`

// Generator produces a chat reply for prompt under the given system
// instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeminiGenerator generates replies with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini client for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// HistorySource returns the latest logged lines of a channel, oldest first.
type HistorySource interface {
	RecentLines(channel string, limit int) ([]storage.LogEntry, error)
}

// Chat answers messages that start with the bot's nick, using the recent
// channel conversation as context.
type Chat struct {
	generator    Generator
	history      HistorySource
	channel      string
	botNick      string
	prompt       string
	contextLines int
}

func NewChat(generator Generator, history HistorySource, channel, botNick, prompt string, contextLines int) *Chat {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Chat{
		generator:    generator,
		history:      history,
		channel:      channel,
		botNick:      botNick,
		prompt:       prompt,
		contextLines: contextLines,
	}
}

// LoadPrompt reads a prompt template from path, or returns DefaultPrompt
// when path is empty.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return string(data), nil
}

func (c *Chat) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	lines, err := c.history.RecentLines(c.channel, c.contextLines)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	convo := make([]string, 0, len(lines))
	for _, l := range lines {
		convo = append(convo, fmt.Sprintf("<%s> %s", l.Nick, l.Message))
	}
	system := strings.NewReplacer(
		"{current_convo}", strings.Join(convo, "\n"),
		"{nick}", c.botNick,
	).Replace(c.prompt)

	out, err := c.generator.Generate(ctx, system, fmt.Sprintf("<%s> %s", ev.Nick(), ev.Body()))
	if err != nil {
		return err
	}
	out = strings.Join(strings.Fields(strings.ReplaceAll(out, "\n", " ")), " ")
	if out == "" {
		return fmt.Errorf("empty reply from generator")
	}
	return reply.Send(out, ev.Nick())
}
