package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/logger"
	"github.com/matt0x6f/garybot/internal/security"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "garybot:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("garybot", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	logLevel := flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	dbPath := flags.String("db", "", "path to the sqlite message log")
	noColor := flags.Bool("no-color", false, "disable colored log output")
	setSecret := flags.String("set-secret", "", "read a value from stdin and store it in the OS keychain under this name, then exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *noColor {
		logger.Plain()
	}
	keychain := security.NewKeychain()
	if *setSecret != "" {
		return storeSecret(keychain, *setSecret)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if err := cfg.ResolveSecrets(keychain); err != nil {
		logger.Log.Warn().Err(err).Msg("Keychain unavailable, continuing without stored API keys")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	logger.Log.Info().
		Str("server", cfg.SessionConfig().Address()).
		Str("nick", cfg.Bot.Nick).
		Str("channel", cfg.Bot.Channel).
		Msg("Starting garybot")
	return app.Run(ctx)
}

func storeSecret(keychain *security.Keychain, name string) error {
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && value == "" {
		return fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	if err := keychain.StoreSecret(name, strings.TrimSpace(value)); err != nil {
		return err
	}
	logger.Log.Info().Str("name", name).Msg("Secret stored")
	return nil
}
