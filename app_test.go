package main

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/storage"
)

// genai links in opencensus, whose view worker starts in init and never exits
var ignoreOpenCensus = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

type pipeServer struct {
	conns chan net.Conn
}

func (p *pipeServer) dial(ctx context.Context, address string) (net.Conn, error) {
	client, server := net.Pipe()
	p.conns <- server
	return client, nil
}

func testAppConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Bot.AdminNick = "gary"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "user_logs.db")
	cfg.Storage.FlushInterval = time.Hour
	cfg.Timing.RegisterPacing = 0
	cfg.Workers.DrainTimeout = time.Second
	return cfg
}

func startApp(t *testing.T, ctx context.Context, cfg *config.Config) (net.Conn, *bufio.Reader, chan error) {
	t.Helper()
	app, err := NewApp(cfg)
	require.NoError(t, err)
	srv := &pipeServer{conns: make(chan net.Conn, 1)}
	app.session.SetDialer(srv.dial)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var conn net.Conn
	select {
	case conn = <-srv.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("app never dialed")
	}
	r := bufio.NewReader(conn)
	for _, want := range []string{"NICK garybot", "USER garybot 0 * :garybot", "JOIN ##garybot"} {
		assert.Equal(t, want, readLine(t, conn, r))
	}
	return conn, r, done
}

func readLine(t *testing.T, conn net.Conn, r *bufio.Reader) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
		return nil
	}
}

func TestAppServesUntilShutdownPhrase(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)
	cfg := testAppConfig(t)

	conn, r, done := startApp(t, context.Background(), cfg)
	defer conn.Close()

	writeLine(t, conn, "PING :irc.example.net")
	assert.Equal(t, "PONG :irc.example.net", readLine(t, conn, r))

	writeLine(t, conn, ":bob!bob@host PRIVMSG ##garybot :.spaghetti")
	assert.True(t, strings.HasPrefix(readLine(t, conn, r), "PRIVMSG ##garybot :bob: "))

	writeLine(t, conn, ":gary!gary@host PRIVMSG garybot :goodnight")
	assert.Equal(t, "PRIVMSG gary :Goodnight!", readLine(t, conn, r))
	require.NoError(t, waitDone(t, done))

	stor, err := storage.NewStorage(cfg.Storage.Path, 10, time.Hour)
	require.NoError(t, err)
	defer stor.Close()
	lines, err := stor.RecentLines("##garybot", 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "bob", lines[0].Nick)
	assert.Equal(t, ".spaghetti", lines[0].Message)
}

func TestAppStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	ctx, cancel := context.WithCancel(context.Background())
	conn, _, done := startApp(t, ctx, testAppConfig(t))
	defer conn.Close()

	cancel()
	assert.NoError(t, waitDone(t, done))
}
