package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestStorage(t *testing.T, bufferSize int) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "user_logs.db"), bufferSize, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecentLines(t *testing.T) {
	s := newTestStorage(t, 10)
	base := time.Unix(1700000000, 0)

	require.NoError(t, s.Record("alice", "##garybot", "first", base))
	require.NoError(t, s.Record("bob", "##garybot", "second", base.Add(time.Second)))
	require.NoError(t, s.Record("carol", "#other", "elsewhere", base.Add(2*time.Second)))
	require.NoError(t, s.Record("alice", "##garybot", "third", base.Add(3*time.Second)))

	lines, err := s.RecentLines("##garybot", 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "second", lines[0].Message)
	assert.Equal(t, "third", lines[1].Message)
	assert.Equal(t, base.Add(3*time.Second).Unix(), lines[1].Time().Unix())
}

func TestRecordFlushesWhenBufferFull(t *testing.T) {
	s := newTestStorage(t, 2)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record("alice", "##garybot", fmt.Sprintf("line %d", i), time.Unix(int64(1700000000+i), 0)))
	}

	lines, err := s.RecentLines("##garybot", 10)
	require.NoError(t, err)
	assert.Len(t, lines, 5)
}

func TestRandomLine(t *testing.T) {
	s := newTestStorage(t, 10)
	now := time.Now()
	require.NoError(t, s.Record("alice", "##garybot", ".spaghetti", now))
	require.NoError(t, s.Record("alice", "##garybot", "   indented", now))
	require.NoError(t, s.Record("alice", "#other", "wrong channel", now))
	require.NoError(t, s.Record("alice", "##garybot", "hello world", now))

	for i := 0; i < 5; i++ {
		line, err := s.RandomLine("alice", "##garybot")
		require.NoError(t, err)
		assert.Equal(t, "hello world", line)
	}

	_, err := s.RandomLine("nobody", "##garybot")
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestRecordError(t *testing.T) {
	s := newTestStorage(t, 10)

	s.RecordError("handler .wa: <alice> .wa pi", errors.New("upstream 500"))
	s.RecordError("handler .ask: <bob> .ask", fmt.Errorf("panic: boom\ngoroutine 1 [running]:"))
	s.RecordError("ignored", nil)

	recorded, err := s.HandlerErrors(10)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	assert.Equal(t, "handler .ask: <bob> .ask", recorded[0].Context)
	assert.Equal(t, "panic: boom", recorded[0].Error)
	assert.Equal(t, "goroutine 1 [running]:", recorded[0].Stack)
	assert.Equal(t, "upstream 500", recorded[1].Error)
	assert.Empty(t, recorded[1].Stack)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "user_logs.db")
	s, err := NewStorage(path, 10, time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Record("alice", "##garybot", "kept", time.Now()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record("alice", "##garybot", "dropped", time.Now()), ErrStorageClosed)
	s.RecordError("after close", errors.New("still must not panic"))

	reopened, err := NewStorage(path, 10, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	lines, err := reopened.RecentLines("##garybot", 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0].Message)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStorage(t, 10)
	require.NoError(t, Migrate(s.db))
	require.NoError(t, Migrate(s.db))
}
