package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/events"
	"github.com/matt0x6f/garybot/internal/irc"
)

// fakePlugin answers requests on the plugin side of a pair of pipes.
type fakePlugin struct {
	mu     sync.Mutex
	events []string
	handle func(p HandleParams) (interface{}, *Error)
}

func (f *fakePlugin) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakePlugin) serve(in io.Reader, out io.WriteCloser) {
	defer out.Close()
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		var result interface{}
		var rpcErr *Error
		switch msg.Method {
		case "initialize":
			result = InitializeResult{Name: "echo", Version: "0.1.0", Events: []string{irc.EventChannelKicked}}
		case "handle":
			var p HandleParams
			_ = json.Unmarshal(msg.Params, &p)
			result, rpcErr = f.handle(p)
		case "event":
			var p EventParams
			_ = json.Unmarshal(msg.Params, &p)
			f.mu.Lock()
			f.events = append(f.events, p.Type)
			f.mu.Unlock()
		}
		if msg.ID == nil {
			continue
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": *msg.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = enc.Encode(resp)
	}
}

func startFake(t *testing.T, f *fakePlugin) *IPC {
	t.Helper()
	toPluginR, toPluginW := io.Pipe()
	fromPluginR, fromPluginW := io.Pipe()
	go f.serve(toPluginR, fromPluginW)
	return NewStreamIPC("echo", fromPluginR, toPluginW)
}

type sent struct {
	message   string
	addressee string
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Send(message, addressee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{message, addressee})
	return nil
}

func decode(t *testing.T, raw string) *irc.Event {
	t.Helper()
	ev, ok := irc.Decode(raw, time.Unix(1700000000, 0))
	require.True(t, ok, raw)
	return ev
}

func TestPluginHandleSendsReplies(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakePlugin{handle: func(p HandleParams) (interface{}, *Error) {
		return HandleResult{Replies: []Reply{
			{Message: "you said " + p.Body, Addressee: p.Nick},
			{Message: "words: " + p.Words[1]},
		}}, nil
	}}
	pm := NewManager("garybot", "##garybot")
	cfg := config.PluginConfig{Name: "echo", Path: "echo", Command: ".echo"}
	require.NoError(t, pm.Attach(context.Background(), cfg, startFake(t, fake)))

	plugins := pm.Plugins()
	require.Len(t, plugins, 1)
	assert.Equal(t, "0.1.0", plugins[0].Info.Version)

	rec := &recorder{}
	ev := decode(t, ":bob!bob@host PRIVMSG ##garybot :.echo hello")
	require.NoError(t, plugins[0].Handle(context.Background(), ev, rec))

	assert.Equal(t, []sent{
		{"you said .echo hello", "bob"},
		{"words: hello", ""},
	}, rec.sent)
	require.NoError(t, pm.Close())
	assert.Empty(t, pm.Plugins())
}

func TestPluginErrorIsHandlerFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakePlugin{handle: func(HandleParams) (interface{}, *Error) {
		return nil, &Error{Code: -32000, Message: "boom"}
	}}
	pm := NewManager("garybot", "##garybot")
	cfg := config.PluginConfig{Name: "echo", Path: "echo", Command: ".echo"}
	require.NoError(t, pm.Attach(context.Background(), cfg, startFake(t, fake)))
	defer pm.Close()

	rec := &recorder{}
	err := pm.Plugins()[0].Handle(context.Background(), decode(t, ":bob!bob@host PRIVMSG ##garybot :.echo"), rec)
	require.Error(t, err)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "boom", rpcErr.Message)
	assert.Empty(t, rec.sent)
}

func TestCallAfterCloseFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	ipc := startFake(t, &fakePlugin{})
	require.NoError(t, ipc.Close())
	<-ipc.done
	assert.ErrorIs(t, ipc.Call(context.Background(), "handle", nil, nil), ErrIPCClosed)
	assert.ErrorIs(t, ipc.Notify("event", nil), ErrIPCClosed)
}

func TestRegisterBindsTriggers(t *testing.T) {
	defer goleak.VerifyNone(t)

	pm := NewManager("garybot", "##garybot")
	defer pm.Close()
	ctx := context.Background()
	require.NoError(t, pm.Attach(ctx, config.PluginConfig{Name: "cmd", Path: "x", Command: ".roll"}, startFake(t, &fakePlugin{})))
	require.NoError(t, pm.Attach(ctx, config.PluginConfig{Name: "pat", Path: "x", Pattern: `\bdice\b`}, startFake(t, &fakePlugin{})))

	var triggers bot.Triggers
	require.NoError(t, pm.Register(&triggers))
	require.Len(t, triggers.Commands, 1)
	assert.Equal(t, ".roll", triggers.Commands[0].Token)
	require.Len(t, triggers.Patterns, 1)
	assert.Equal(t, "pat", triggers.Patterns[0].Name)
	assert.True(t, triggers.Patterns[0].Pattern.MatchString("roll the dice"))
}

func TestRegisterRejectsBadPattern(t *testing.T) {
	defer goleak.VerifyNone(t)

	pm := NewManager("garybot", "##garybot")
	defer pm.Close()
	require.NoError(t, pm.Attach(context.Background(), config.PluginConfig{Name: "bad", Path: "x", Pattern: "("}, startFake(t, &fakePlugin{})))

	var triggers bot.Triggers
	assert.Error(t, pm.Register(&triggers))
}

func TestAttachRejectsDuplicateName(t *testing.T) {
	defer goleak.VerifyNone(t)

	pm := NewManager("garybot", "##garybot")
	defer pm.Close()
	cfg := config.PluginConfig{Name: "echo", Path: "x", Command: ".echo"}
	require.NoError(t, pm.Attach(context.Background(), cfg, startFake(t, &fakePlugin{})))

	dup := startFake(t, &fakePlugin{})
	defer dup.Close()
	assert.Error(t, pm.Attach(context.Background(), cfg, dup))
}

func TestOnEventForwardsSubscribedTypes(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakePlugin{}
	pm := NewManager("garybot", "##garybot")
	defer pm.Close()
	require.NoError(t, pm.Attach(context.Background(), config.PluginConfig{Name: "echo", Path: "x", Command: ".echo"}, startFake(t, fake)))

	bus := events.NewEventBus()
	pm.Subscribe(bus)
	bus.EmitSync(events.Event{Type: irc.EventConnectionLost})
	bus.EmitSync(events.Event{Type: irc.EventChannelKicked, Data: map[string]interface{}{"channel": "##garybot"}})

	require.Eventually(t, func() bool { return len(fake.seen()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{irc.EventChannelKicked}, fake.seen())
}

func TestResolvePlugin(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "dice")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))
	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0644))

	got, err := ResolvePlugin(exe)
	require.NoError(t, err)
	assert.Equal(t, exe, got)

	_, err = ResolvePlugin(plain)
	assert.ErrorContains(t, err, "not executable")
	_, err = ResolvePlugin(dir)
	assert.ErrorContains(t, err, "directory")
	_, err = ResolvePlugin(filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "not found")
	_, err = ResolvePlugin("garybot-no-such-plugin")
	assert.ErrorContains(t, err, "PATH")
}
