package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matt0x6f/garybot/internal/constants"
	"github.com/matt0x6f/garybot/internal/events"
	"github.com/matt0x6f/garybot/internal/logger"
)

var (
	ErrNotConnected  = errors.New("not connected")
	ErrNotJoined     = errors.New("not joined to channel")
	ErrSessionClosed = errors.New("session is closed")
	ErrInvalidLine   = errors.New("line contains CR or LF")
)

// State is the connection lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// SessionConfig is loaded once at startup and never changes afterwards.
type SessionConfig struct {
	Host string
	Port int
	TLS  bool

	Nick           string
	AdminNick      string
	AdminIdent     string // carried for config compatibility, the shutdown signal matches the nick only
	Channel        string
	ShutdownPhrase string
	Ignore         []string

	ConnectBackoff    time.Duration
	ReconnectCooldown time.Duration
	RejoinCooldown    time.Duration
	RegisterPacing    time.Duration
}

// Address returns host:port.
func (c SessionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dialer opens the transport to address. For TLS sessions the returned
// connection has completed its handshake.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

func defaultDialer(cfg SessionConfig) Dialer {
	netDialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 60 * time.Second}
	if !cfg.TLS {
		return func(ctx context.Context, address string) (net.Conn, error) {
			return netDialer.DialContext(ctx, "tcp", address)
		}
	}
	tlsDialer := &tls.Dialer{
		NetDialer: netDialer,
		Config: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
	return func(ctx context.Context, address string) (net.Conn, error) {
		return tlsDialer.DialContext(ctx, "tcp", address)
	}
}

// Session owns the single transport connection to the server. Reads happen
// only from the session loop; writes may come from any goroutine and are
// serialized.
type Session struct {
	cfg      SessionConfig
	eventBus *events.EventBus
	dial     Dialer

	mu     sync.RWMutex // guards conn, reader, state, closed
	conn   net.Conn
	reader *bufio.Reader
	state  State
	closed bool

	// writeMu is taken before mu whenever both are needed
	writeMu sync.Mutex
}

// NewSession creates a disconnected session. eventBus may be nil.
func NewSession(cfg SessionConfig, eventBus *events.EventBus) *Session {
	return &Session{
		cfg:      cfg,
		eventBus: eventBus,
		dial:     defaultDialer(cfg),
		state:    StateDisconnected,
	}
}

// SetDialer replaces the transport dialer. Call before Start.
func (s *Session) SetDialer(d Dialer) {
	s.dial = d
}

// Config returns the session configuration
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		logger.Log.Debug().
			Str("from", prev.String()).
			Str("to", state.String()).
			Msg("Session state changed")
	}
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) emit(eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["server"] = s.cfg.Address()
	s.eventBus.Emit(events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

// closeTransport drops the current connection. In-flight writes finish
// first, so nothing is written to a handle after it has been replaced.
func (s *Session) closeTransport() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logger.Log.Debug().Err(err).Msg("Error closing transport")
		}
	}
	s.conn = nil
	s.reader = nil
	s.state = StateDisconnected
}

// Start connects, registers and joins, retrying until it succeeds or ctx
// is cancelled.
func (s *Session) Start(ctx context.Context) error {
	return s.establish(ctx)
}

func (s *Session) establish(ctx context.Context) error {
	for {
		if err := s.Connect(ctx); err != nil {
			return err
		}
		err := s.RegisterAndJoin(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.isClosed() {
			return ErrSessionClosed
		}
		logger.Log.Warn().Err(err).Dur("backoff", s.cfg.ConnectBackoff).Msg("Registration failed, reconnecting")
		if err := sleep(ctx, s.cfg.ConnectBackoff); err != nil {
			return err
		}
	}
}

// Connect opens the transport, retrying at a fixed backoff with no attempt
// limit. Any previous transport is closed first.
func (s *Session) Connect(ctx context.Context) error {
	address := s.cfg.Address()
	for attempt := 1; ; attempt++ {
		if s.isClosed() {
			return ErrSessionClosed
		}
		s.closeTransport()
		s.setState(StateConnecting)

		logger.Log.Info().Str("server", address).Int("attempt", attempt).Bool("tls", s.cfg.TLS).Msg("Connecting")
		conn, err := s.dial(ctx, address)
		if err == nil {
			s.writeMu.Lock()
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				s.writeMu.Unlock()
				conn.Close()
				return ErrSessionClosed
			}
			s.conn = conn
			s.reader = bufio.NewReaderSize(conn, constants.MaxLineLength)
			s.mu.Unlock()
			s.writeMu.Unlock()

			logger.Log.Info().Str("server", address).Msg("Connected to server")
			s.emit(EventConnectionEstablished, map[string]interface{}{"attempt": attempt})
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Log.Warn().
			Err(err).
			Str("server", address).
			Int("attempt", attempt).
			Dur("backoff", s.cfg.ConnectBackoff).
			Msg("Connection attempt failed")
		s.emit(EventConnectFailed, map[string]interface{}{"attempt": attempt, "error": err.Error()})

		if err := sleep(ctx, s.cfg.ConnectBackoff); err != nil {
			return err
		}
	}
}

// RegisterAndJoin sends NICK, USER and JOIN in that order.
func (s *Session) RegisterAndJoin(ctx context.Context) error {
	lines := []string{
		NickLine(s.cfg.Nick),
		UserLine(s.cfg.Nick),
		JoinLine(s.cfg.Channel),
	}
	for i, line := range lines {
		if i > 0 {
			if err := sleep(ctx, s.cfg.RegisterPacing); err != nil {
				return err
			}
		}
		if err := s.SendLine(line); err != nil {
			return fmt.Errorf("failed to register: %w", err)
		}
	}

	s.setState(StateJoined)
	logger.Log.Info().Str("nick", s.cfg.Nick).Str("channel", s.cfg.Channel).Msg("Registered and joined channel")
	s.emit(EventChannelJoined, map[string]interface{}{"channel": s.cfg.Channel})
	return nil
}

// ReceiveLine blocks for the next non-blank line. It returns "" only when
// the transport is closed or unusable.
func (s *Session) ReceiveLine() string {
	s.mu.RLock()
	reader := s.reader
	s.mu.RUnlock()
	if reader == nil {
		return ""
	}

	for {
		raw, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			logger.Log.Warn().Int("limit", constants.MaxLineLength).Msg("Dropping overlong line")
			if err = discardLine(reader); err != nil {
				return ""
			}
			continue
		}
		if err != nil {
			if err != io.EOF {
				logger.Log.Debug().Err(err).Msg("Transport read failed")
			}
			return ""
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line == "" {
			continue
		}
		return strings.ToValidUTF8(line, "�")
	}
}

// discardLine skips the rest of a line that did not fit the read buffer.
func discardLine(reader *bufio.Reader) error {
	for {
		_, err := reader.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// SendLine writes text followed by CRLF. Concurrent callers never
// interleave.
func (s *Session) SendLine(text string) error {
	return s.writeLine(text, false)
}

// writeLine checks the session state after taking writeMu, so a caller
// that needs StateJoined cannot slip in between a reconnect and the
// registration lines.
func (s *Session) writeLine(text string, requireJoined bool) error {
	if strings.ContainsAny(text, "\r\n") {
		return ErrInvalidLine
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	state := s.state
	s.mu.RUnlock()
	if requireJoined && state != StateJoined {
		return ErrNotJoined
	}
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout)); err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to set write deadline")
	}
	if _, err := io.WriteString(conn, text+"\r\n"); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	logger.Log.Debug().Str("line", text).Msg("Sent line")
	return nil
}

// LivenessCheck reconnects when raw is empty, which is how a closed
// transport shows up. It reports whether a reconnect happened.
func (s *Session) LivenessCheck(ctx context.Context, raw string) (bool, error) {
	if raw != "" {
		return false, nil
	}
	if s.isClosed() {
		return false, ErrSessionClosed
	}

	logger.Log.Warn().Dur("cooldown", s.cfg.ReconnectCooldown).Msg("Transport closed, reconnecting")
	s.emit(EventConnectionLost, nil)
	s.closeTransport()

	if err := sleep(ctx, s.cfg.ReconnectCooldown); err != nil {
		return false, err
	}
	if err := s.establish(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// KeepaliveRespond answers a PING probe. It reports whether raw was one.
func (s *Session) KeepaliveRespond(raw string) (bool, error) {
	reply, ok := KeepAliveReply(raw)
	if !ok {
		return false, nil
	}
	if err := s.SendLine(reply); err != nil {
		return true, fmt.Errorf("failed to answer keep-alive: %w", err)
	}
	return true, nil
}

// RejoinIfRemoved rejoins the tracked channel after the bot was kicked
// from it, then acknowledges the kick in the channel.
func (s *Session) RejoinIfRemoved(ctx context.Context, raw string) (bool, error) {
	if !IsKickOf(raw, s.cfg.Channel, s.cfg.Nick) {
		return false, nil
	}

	logger.Log.Warn().Str("channel", s.cfg.Channel).Dur("cooldown", s.cfg.RejoinCooldown).Msg("Kicked from channel, rejoining")
	s.emit(EventChannelKicked, map[string]interface{}{"channel": s.cfg.Channel, "line": raw})
	s.setState(StateConnecting)

	if err := sleep(ctx, s.cfg.RejoinCooldown); err != nil {
		return true, err
	}
	if err := s.SendLine(JoinLine(s.cfg.Channel)); err != nil {
		return true, fmt.Errorf("failed to rejoin: %w", err)
	}
	s.setState(StateJoined)
	if err := s.SendLine(PrivmsgLine(s.cfg.Channel, constants.KickAcknowledgement)); err != nil {
		return true, fmt.Errorf("failed to acknowledge kick: %w", err)
	}
	return true, nil
}

// Privmsg sends message to target. It fails with ErrNotJoined while the
// session is connecting or disconnected.
func (s *Session) Privmsg(target, message string) error {
	return s.writeLine(PrivmsgLine(target, flatten(message)), true)
}

// Send posts message to the tracked channel, prefixed with "<addressee>: "
// when addressee is set.
func (s *Session) Send(message, addressee string) error {
	return s.Privmsg(s.cfg.Channel, Addressed(message, addressee))
}

// Shutdown sends the farewell to farewellTarget and closes the transport.
// Later calls do nothing.
func (s *Session) Shutdown(farewellTarget string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var sendErr error
	if farewellTarget != "" {
		if err := s.SendLine(PrivmsgLine(farewellTarget, constants.FarewellMessage)); err != nil {
			sendErr = fmt.Errorf("failed to send farewell: %w", err)
		}
	}
	s.closeTransport()

	logger.Log.Info().Str("farewell_target", farewellTarget).Msg("Session shut down")
	s.emit(EventSessionShutdown, nil)
	return sendErr
}

// Close shuts the session down without a farewell.
func (s *Session) Close() error {
	return s.Shutdown("")
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(message string) string {
	return lineBreaks.Replace(message)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
