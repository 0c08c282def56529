// Package plugin runs external handler executables that speak JSON-RPC
// 2.0 over stdio.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/events"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
)

// Plugin is a running plugin bound to one trigger. It implements
// bot.Handler.
type Plugin struct {
	Name   string
	Info   InitializeResult
	Config config.PluginConfig
	IPC    *IPC
}

// Handle forwards the event to the plugin and sends back its replies. A
// JSON-RPC error from the plugin is returned as the handler's failure.
func (p *Plugin) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	params := HandleParams{
		Nick:       ev.Nick(),
		Ident:      ev.Ident(),
		Target:     ev.Target(),
		Body:       ev.Body(),
		Words:      ev.Words(),
		ReceivedAt: ev.ReceivedAt(),
	}
	var result HandleResult
	if err := p.IPC.Call(ctx, "handle", params, &result); err != nil {
		return fmt.Errorf("plugin %s: %w", p.Name, err)
	}
	for _, r := range result.Replies {
		if err := reply.Send(r.Message, r.Addressee); err != nil {
			return fmt.Errorf("plugin %s: failed to send reply: %w", p.Name, err)
		}
	}
	return nil
}

func (p *Plugin) subscribes(eventType string) bool {
	for _, e := range p.Info.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// Manager manages plugin lifecycle and event routing
type Manager struct {
	plugins map[string]*Plugin
	order   []string
	botNick string
	channel string
	mu      sync.RWMutex
}

// NewManager creates a new plugin manager
func NewManager(botNick, channel string) *Manager {
	return &Manager{
		plugins: make(map[string]*Plugin),
		botNick: botNick,
		channel: channel,
	}
}

// Subscribe forwards session events to plugins that asked for them.
func (pm *Manager) Subscribe(bus *events.EventBus) {
	bus.Subscribe("*", pm)
}

// OnEvent implements the Subscriber interface
func (pm *Manager) OnEvent(event events.Event) {
	for _, plugin := range pm.Plugins() {
		if !plugin.subscribes(event.Type) {
			continue
		}
		params := EventParams{Type: event.Type, Data: event.Data}
		if err := plugin.IPC.Notify("event", params); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("plugin", plugin.Name).
				Str("event", event.Type).
				Msg("Failed to send event to plugin")
		}
	}
}

// Load starts every configured plugin. A plugin that fails to start is
// logged and skipped.
func (pm *Manager) Load(ctx context.Context, cfgs []config.PluginConfig) {
	for _, cfg := range cfgs {
		path, err := ResolvePlugin(cfg.Path)
		if err != nil {
			logger.Log.Error().Err(err).Str("plugin", cfg.Name).Msg("Skipping plugin")
			continue
		}
		ipc, err := StartIPC(path, cfg.Args, cfg.Name)
		if err != nil {
			logger.Log.Error().Err(err).Str("plugin", cfg.Name).Msg("Skipping plugin")
			continue
		}
		if err := pm.Attach(ctx, cfg, ipc); err != nil {
			ipc.Close()
			logger.Log.Error().Err(err).Str("plugin", cfg.Name).Msg("Skipping plugin")
		}
	}
}

// Attach initializes a plugin over an established connection and adds it
// to the manager.
func (pm *Manager) Attach(ctx context.Context, cfg config.PluginConfig, ipc *IPC) error {
	var info InitializeResult
	params := InitializeParams{Version: ProtocolVersion, BotNick: pm.botNick, Channel: pm.channel}
	if err := ipc.Call(ctx, "initialize", params, &info); err != nil {
		return fmt.Errorf("failed to initialize plugin %s: %w", cfg.Name, err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.plugins[cfg.Name]; exists {
		return fmt.Errorf("plugin %s already loaded", cfg.Name)
	}
	pm.plugins[cfg.Name] = &Plugin{Name: cfg.Name, Info: info, Config: cfg, IPC: ipc}
	pm.order = append(pm.order, cfg.Name)

	logger.Log.Info().
		Str("plugin", cfg.Name).
		Str("version", info.Version).
		Str("description", info.Description).
		Msg("Plugin loaded")
	return nil
}

// Plugins returns the loaded plugins in load order.
func (pm *Manager) Plugins() []*Plugin {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]*Plugin, 0, len(pm.order))
	for _, name := range pm.order {
		out = append(out, pm.plugins[name])
	}
	return out
}

// Register binds every loaded plugin to its command or pattern trigger.
func (pm *Manager) Register(triggers *bot.Triggers) error {
	for _, p := range pm.Plugins() {
		switch {
		case p.Config.Command != "":
			triggers.Command(p.Config.Command, p)
		case p.Config.Pattern != "":
			if err := registerPattern(triggers, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerPattern(triggers *bot.Triggers, p *Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s: invalid pattern %q: %v", p.Name, p.Config.Pattern, r)
		}
	}()
	triggers.Pattern(p.Name, p.Config.Pattern, p)
	return nil
}

// Close closes all plugins
func (pm *Manager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for _, name := range pm.order {
		if err := pm.plugins[name].IPC.Close(); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", name, err))
		}
	}
	pm.plugins = make(map[string]*Plugin)
	pm.order = nil
	return errors.Join(errs...)
}
