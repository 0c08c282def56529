// Package config loads the bot's settings from YAML, the environment and
// the OS keychain.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matt0x6f/garybot/internal/constants"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/validation"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bot      BotConfig      `yaml:"bot"`
	Timing   TimingConfig   `yaml:"timing"`
	Workers  WorkersConfig  `yaml:"workers"`
	Storage  StorageConfig  `yaml:"storage"`
	APIKeys  APIKeys        `yaml:"api_keys"`
	Chat     ChatConfig     `yaml:"chat"`
	Plugins  []PluginConfig `yaml:"plugins"`
	Notify   bool           `yaml:"notify"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

type BotConfig struct {
	Nick           string   `yaml:"nick"`
	AdminNick      string   `yaml:"admin_nick"`
	AdminIdent     string   `yaml:"admin_ident"`
	Channel        string   `yaml:"channel"`
	ShutdownPhrase string   `yaml:"shutdown_phrase"`
	Ignore         []string `yaml:"ignore"`
}

type TimingConfig struct {
	ConnectBackoff    time.Duration `yaml:"connect_backoff"`
	ReconnectCooldown time.Duration `yaml:"reconnect_cooldown"`
	RejoinCooldown    time.Duration `yaml:"rejoin_cooldown"`
	RegisterPacing    time.Duration `yaml:"register_pacing"`
}

type WorkersConfig struct {
	Size           int           `yaml:"size"`
	Queue          int           `yaml:"queue"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

type StorageConfig struct {
	Path          string        `yaml:"path"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// APIKeys for the built-in handlers. A handler whose key is empty is not
// registered.
type APIKeys struct {
	YouTube string `yaml:"youtube"`
	Wolfram string `yaml:"wolfram"`
	LLM     string `yaml:"llm"`
	Odds    string `yaml:"odds"`
	NASA    string `yaml:"nasa"`
}

type ChatConfig struct {
	Model        string `yaml:"model"`
	PromptFile   string `yaml:"prompt_file"`
	ContextLines int    `yaml:"context_lines"`
}

// PluginConfig binds an external handler executable to exactly one of a
// command token or a body pattern.
type PluginConfig struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Args    []string `yaml:"args"`
	Command string   `yaml:"command"`
	Pattern string   `yaml:"pattern"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "irc.libera.chat",
			Port: 7000,
			TLS:  true,
		},
		Bot: BotConfig{
			Nick:           "garybot",
			AdminNick:      "garygreen",
			AdminIdent:     "gary",
			Channel:        "##garybot",
			ShutdownPhrase: "goodnight",
			Ignore:         []string{"ChanServ", "NickServ", "***"},
		},
		Timing: TimingConfig{
			ConnectBackoff:    constants.ConnectBackoff,
			ReconnectCooldown: constants.ReconnectCooldown,
			RejoinCooldown:    constants.RejoinCooldown,
			RegisterPacing:    constants.RegisterPacing,
		},
		Workers: WorkersConfig{
			Size:           constants.WorkerPoolSize,
			Queue:          constants.WorkerQueueSize,
			DrainTimeout:   constants.HandlerDrainTimeout,
			HandlerTimeout: constants.HandlerTimeout,
		},
		Storage: StorageConfig{
			Path:          "user_logs.db",
			BufferSize:    constants.LogBufferSize,
			FlushInterval: constants.LogFlushInterval,
		},
		Chat: ChatConfig{
			Model:        "gemini-2.0-flash",
			ContextLines: 500,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path means defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER":          &c.Server.Host,
		"BOT_NICK":        &c.Bot.Nick,
		"ADMIN_NICK":      &c.Bot.AdminNick,
		"ADMIN_IDENT":     &c.Bot.AdminIdent,
		"MAIN_CHANNEL":    &c.Bot.Channel,
		"EXIT_CODE":       &c.Bot.ShutdownPhrase,
		"YOUTUBE_API_KEY": &c.APIKeys.YouTube,
		"WOLFRAM_API_KEY": &c.APIKeys.Wolfram,
		"LLM_KEY":         &c.APIKeys.LLM,
		"ODDS_API_KEY":    &c.APIKeys.Odds,
		"NASA_API_KEY":    &c.APIKeys.NASA,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("SSLPORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SSLPORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("IGNORE_LIST"); ok {
		c.Bot.Ignore = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SecretStore looks up secrets by name. *security.Keychain satisfies it.
type SecretStore interface {
	Secret(name string) (string, error)
}

// ResolveSecrets fills API keys that neither the file nor the environment
// set from store, keyed by their environment variable names.
func (c *Config) ResolveSecrets(store SecretStore) error {
	if store == nil {
		return nil
	}
	keys := []struct {
		name string
		dst  *string
	}{
		{"YOUTUBE_API_KEY", &c.APIKeys.YouTube},
		{"WOLFRAM_API_KEY", &c.APIKeys.Wolfram},
		{"LLM_KEY", &c.APIKeys.LLM},
		{"ODDS_API_KEY", &c.APIKeys.Odds},
		{"NASA_API_KEY", &c.APIKeys.NASA},
	}
	for _, k := range keys {
		if *k.dst != "" {
			continue
		}
		v, err := store.Secret(k.name)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", k.name, err)
		}
		*k.dst = v
	}
	return nil
}

// Validate checks everything the session depends on.
func (c *Config) Validate() error {
	if err := validation.ValidateServerAddress(c.Server.Host, c.Server.Port); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validation.ValidateNick(c.Bot.Nick); err != nil {
		return fmt.Errorf("bot nick: %w", err)
	}
	if err := validation.ValidateNick(c.Bot.AdminNick); err != nil {
		return fmt.Errorf("admin nick: %w", err)
	}
	if err := validation.ValidateChannelName(c.Bot.Channel); err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	if err := validation.ValidatePhrase("shutdown phrase", c.Bot.ShutdownPhrase); err != nil {
		return err
	}
	if c.Workers.Size < 1 {
		return fmt.Errorf("workers.size must be at least 1")
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i, p := range c.Plugins {
		if p.Name == "" || p.Path == "" {
			return fmt.Errorf("plugin %d: name and path are required", i+1)
		}
		if (p.Command == "") == (p.Pattern == "") {
			return fmt.Errorf("plugin %s: set exactly one of command or pattern", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("plugin %s: duplicate name", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// SessionConfig converts the loaded settings into the session's immutable
// configuration.
func (c *Config) SessionConfig() irc.SessionConfig {
	ignore := make([]string, len(c.Bot.Ignore))
	copy(ignore, c.Bot.Ignore)
	return irc.SessionConfig{
		Host:              c.Server.Host,
		Port:              c.Server.Port,
		TLS:               c.Server.TLS,
		Nick:              c.Bot.Nick,
		AdminNick:         c.Bot.AdminNick,
		AdminIdent:        c.Bot.AdminIdent,
		Channel:           c.Bot.Channel,
		ShutdownPhrase:    c.Bot.ShutdownPhrase,
		Ignore:            ignore,
		ConnectBackoff:    c.Timing.ConnectBackoff,
		ReconnectCooldown: c.Timing.ReconnectCooldown,
		RejoinCooldown:    c.Timing.RejoinCooldown,
		RegisterPacing:    c.Timing.RegisterPacing,
	}
}
