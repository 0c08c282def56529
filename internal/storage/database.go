// Package storage keeps the bot's channel log and handler error log in
// sqlite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/matt0x6f/garybot/internal/logger"
)

var (
	ErrStorageClosed = errors.New("storage is closed")
	ErrNoRecord      = errors.New("no record")
)

// Storage handles database operations. Channel lines are buffered and
// written in batches; everything else goes straight to the database.
type Storage struct {
	db            *sqlx.DB
	writeBuffer   chan LogEntry
	bufferSize    int
	flushInterval time.Duration
	mu            sync.Mutex // serializes flushes
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closed        bool
	closedMu      sync.RWMutex
}

// NewStorage opens (or creates) the database at dbPath and starts the
// background flusher.
func NewStorage(dbPath string, bufferSize int, flushInterval time.Duration) (*Storage, error) {
	// Enable WAL mode for better concurrent writes
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection in WAL mode
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if bufferSize < 1 {
		bufferSize = 1
	}
	storage := &Storage{
		db:            db,
		writeBuffer:   make(chan LogEntry, bufferSize),
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	storage.wg.Add(1)
	go storage.flushLoop()

	return storage, nil
}

// Close flushes buffered lines and closes the database. Later calls do
// nothing.
func (s *Storage) Close() error {
	s.closedMu.Lock()
	if s.closed {
		s.closedMu.Unlock()
		return nil
	}
	s.closed = true
	s.closedMu.Unlock()

	// flushLoop drains the buffer on its way out
	close(s.stopCh)
	s.wg.Wait()

	return s.db.Close()
}

func (s *Storage) isClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

// flushLoop periodically flushes the write buffer
func (s *Storage) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.flushBuffer()
			return
		case <-ticker.C:
			s.flushBuffer()
		}
	}
}

// flushBuffer writes everything currently buffered in one batch insert.
func (s *Storage) flushBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.writeBuffer) == 0 {
		return
	}

	entries := make([]LogEntry, 0, s.bufferSize)
drain:
	for len(entries) < s.bufferSize {
		select {
		case e := <-s.writeBuffer:
			entries = append(entries, e)
		default:
			break drain
		}
	}
	if len(entries) == 0 {
		return
	}

	query := `INSERT INTO user_logs (nick, target, message, timestamp)
	          VALUES (:nick, :target, :message, :timestamp)`
	if _, err := s.db.NamedExec(query, entries); err != nil {
		logger.Log.Error().Err(err).Int("count", len(entries)).Msg("Error flushing channel log")
	}
}

// Record queues one channel line for batch insertion.
func (s *Storage) Record(nick, target, body string, timestamp time.Time) error {
	entry := LogEntry{
		Nick:      nick,
		Target:    target,
		Message:   body,
		Timestamp: unixSeconds(timestamp),
	}

	// the read lock keeps Close from racing the send
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return ErrStorageClosed
	}

	select {
	case s.writeBuffer <- entry:
		return nil
	default:
	}

	// Buffer full, flush immediately
	s.flushBuffer()
	select {
	case s.writeBuffer <- entry:
		return nil
	default:
		return fmt.Errorf("write buffer full and flush failed")
	}
}

// Flush writes buffered lines now so that reads see them.
func (s *Storage) Flush() error {
	if s.isClosed() {
		return ErrStorageClosed
	}
	s.flushBuffer()
	return nil
}

// RecordError logs a handler failure and stores it. It never fails; a
// database error is only logged. Anything after the first line of the
// error text is kept as the stack.
func (s *Storage) RecordError(context string, err error) {
	if err == nil {
		return
	}
	text := err.Error()
	summary, stack, _ := strings.Cut(text, "\n")
	logger.Log.Error().Str("context", context).Str("error", summary).Msg("Handler failed")

	if s.isClosed() {
		return
	}
	_, dbErr := s.db.Exec(
		`INSERT INTO handler_errors (context, error, stack, occurred_at) VALUES (?, ?, ?, ?)`,
		context, summary, stack, time.Now().UTC())
	if dbErr != nil {
		logger.Log.Warn().Err(dbErr).Msg("Failed to store handler error")
	}
}

// HandlerErrors returns the most recent handler failures, newest first.
func (s *Storage) HandlerErrors(limit int) ([]HandlerError, error) {
	var out []HandlerError
	err := s.db.Select(&out,
		`SELECT id, context, error, stack, occurred_at FROM handler_errors
		 ORDER BY id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get handler errors: %w", err)
	}
	return out, nil
}

// RandomLine returns a random logged line by nick in channel. Only lines
// starting with a letter or digit qualify, which skips commands.
func (s *Storage) RandomLine(nick, channel string) (string, error) {
	if err := s.Flush(); err != nil {
		return "", err
	}

	var line string
	err := s.db.Get(&line,
		`SELECT message FROM user_logs
		 WHERE nick = ?
		 AND target = ?
		 AND message GLOB '[A-Za-z0-9]*'
		 ORDER BY RANDOM()
		 LIMIT 1`, nick, channel)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRecord
	}
	if err != nil {
		return "", fmt.Errorf("failed to get random line: %w", err)
	}
	return line, nil
}

// RecentLines returns up to limit of the latest lines in channel, oldest
// first.
func (s *Storage) RecentLines(channel string, limit int) ([]LogEntry, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}

	var entries []LogEntry
	err := s.db.Select(&entries,
		`SELECT COALESCE(nick, '') AS nick, COALESCE(target, '') AS target,
		        COALESCE(message, '') AS message, COALESCE(timestamp, 0) AS timestamp
		 FROM user_logs
		 WHERE target = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent lines: %w", err)
	}

	// Reverse to get chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
