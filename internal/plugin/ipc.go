package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/matt0x6f/garybot/internal/logger"
)

var ErrIPCClosed = errors.New("IPC closed")

// DefaultCallTimeout bounds a call whose context has no deadline.
const DefaultCallTimeout = 10 * time.Second

// IPC handles communication with a plugin process
type IPC struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	pluginID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	mu        sync.Mutex
	requests  map[int64]chan *message
	nextID    int64
	closed    bool
	done      chan struct{}
}

// StartIPC starts the plugin executable and connects to its stdio.
func StartIPC(path string, args []string, pluginID string) (*IPC, error) {
	logger.Log.Info().
		Str("plugin", pluginID).
		Str("path", path).
		Msg("Starting plugin process")

	cmd := exec.Command(path, args...)
	// A minimal environment keeps shell and IDE variables out of plugins
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"USER=" + os.Getenv("USER"),
		"TERM=dumb",
	}
	if lang := os.Getenv("LANG"); lang != "" {
		env = append(env, "LANG="+lang)
	} else {
		env = append(env, "LANG=en_US.UTF-8")
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start plugin: %w", err)
	}
	logger.Log.Info().
		Str("plugin", pluginID).
		Int("pid", cmd.Process.Pid).
		Msg("Plugin process started")

	ipc := newIPC(pluginID, stdout, stdin)
	ipc.cmd = cmd

	// stderr must be drained or the child blocks once the pipe fills
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Log.Info().Str("plugin", pluginID).Str("stderr", scanner.Text()).Msg("Plugin stderr")
		}
	}()
	// Always reap the process to prevent zombies
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Log.Debug().Err(err).Str("plugin", pluginID).Msg("Plugin process exited")
		}
	}()

	return ipc, nil
}

// NewStreamIPC speaks the plugin protocol over arbitrary streams, for
// plugins that are not child processes.
func NewStreamIPC(pluginID string, r io.Reader, w io.WriteCloser) *IPC {
	return newIPC(pluginID, r, w)
}

func newIPC(pluginID string, r io.Reader, w io.WriteCloser) *IPC {
	ipc := &IPC{
		stdin:    w,
		stdout:   bufio.NewReader(r),
		pluginID: pluginID,
		requests: make(map[int64]chan *message),
		nextID:   1,
		done:     make(chan struct{}),
	}
	go ipc.readLoop()
	return ipc
}

// readLoop reads responses and notifications from the plugin
func (ipc *IPC) readLoop() {
	defer close(ipc.done)

	for {
		line, err := ipc.stdout.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			ipc.dispatch(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Log.Warn().Err(err).Str("plugin", ipc.pluginID).Msg("Error reading from plugin stdout")
			}
			break
		}
	}

	// Cleanup on close
	ipc.mu.Lock()
	ipc.closed = true
	for id, ch := range ipc.requests {
		close(ch)
		delete(ipc.requests, id)
	}
	ipc.mu.Unlock()
}

func (ipc *IPC) dispatch(line string) {
	var msg message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		logger.Log.Warn().Err(err).Str("plugin", ipc.pluginID).Str("line", line).Msg("Unparseable plugin message")
		return
	}

	if msg.Method != "" {
		ipc.handleNotification(&msg)
		return
	}
	if msg.ID == nil {
		logger.Log.Warn().Str("plugin", ipc.pluginID).Msg("Plugin response without ID")
		return
	}

	ipc.mu.Lock()
	ch, ok := ipc.requests[*msg.ID]
	delete(ipc.requests, *msg.ID)
	ipc.mu.Unlock()

	if !ok {
		logger.Log.Warn().Str("plugin", ipc.pluginID).Int64("id", *msg.ID).Msg("Received response with unknown ID")
		return
	}
	ch <- &msg
}

// handleNotification handles JSON-RPC notifications from plugins
func (ipc *IPC) handleNotification(msg *message) {
	switch msg.Method {
	case "log":
		var p LogParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			logger.Log.Warn().Err(err).Str("plugin", ipc.pluginID).Msg("Failed to parse log params")
			return
		}
		level, err := zerolog.ParseLevel(p.Level)
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}
		logger.Log.WithLevel(level).Str("plugin", ipc.pluginID).Msg(p.Message)
	default:
		logger.Log.Debug().Str("plugin", ipc.pluginID).Str("method", msg.Method).Msg("Ignoring plugin notification")
	}
}

func (ipc *IPC) write(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", req.Method, err)
	}
	data = append(data, '\n')

	ipc.writeMu.Lock()
	defer ipc.writeMu.Unlock()
	if _, err := ipc.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", req.Method, err)
	}
	return nil
}

// Call sends a request and decodes the result into result, which may be
// nil. It waits until ctx is done, or DefaultCallTimeout when ctx has no
// deadline.
func (ipc *IPC) Call(ctx context.Context, method string, params, result interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	ipc.mu.Lock()
	if ipc.closed {
		ipc.mu.Unlock()
		return ErrIPCClosed
	}
	id := ipc.nextID
	ipc.nextID++
	ch := make(chan *message, 1)
	ipc.requests[id] = ch
	ipc.mu.Unlock()

	forget := func() {
		ipc.mu.Lock()
		delete(ipc.requests, id)
		ipc.mu.Unlock()
	}

	if err := ipc.write(Request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		forget()
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: plugin closed connection: %w", method, ErrIPCClosed)
		}
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %w", method, resp.Error)
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		forget()
		return fmt.Errorf("timeout waiting for %s response: %w", method, ctx.Err())
	}
}

// Notify sends a JSON-RPC notification (no response expected)
func (ipc *IPC) Notify(method string, params interface{}) error {
	ipc.mu.Lock()
	closed := ipc.closed
	ipc.mu.Unlock()
	if closed {
		return ErrIPCClosed
	}
	return ipc.write(Request{JSONRPC: "2.0", Method: method, Params: params})
}

// Close closes stdin, which asks the plugin to exit, and kills the process
// if it is still running after a grace period.
func (ipc *IPC) Close() error {
	ipc.closeOnce.Do(func() {
		ipc.mu.Lock()
		ipc.closed = true
		ipc.mu.Unlock()

		ipc.stdin.Close()
		if ipc.cmd == nil || ipc.cmd.Process == nil {
			return
		}
		select {
		case <-ipc.done:
		case <-time.After(time.Second):
			logger.Log.Warn().Str("plugin", ipc.pluginID).Msg("Plugin did not exit, killing it")
			ipc.cmd.Process.Kill()
		}
	})
	return nil
}
