package storage

import (
	"math"
	"time"
)

// LogEntry is one logged channel line. Timestamp is Unix seconds with a
// fractional part, the format the bot's log database has always used.
type LogEntry struct {
	Nick      string  `db:"nick" json:"nick"`
	Target    string  `db:"target" json:"target"`
	Message   string  `db:"message" json:"message"`
	Timestamp float64 `db:"timestamp" json:"timestamp"`
}

// Time converts Timestamp back to a time.Time.
func (e LogEntry) Time() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// HandlerError is one recorded handler failure.
type HandlerError struct {
	ID         int64     `db:"id" json:"id"`
	Context    string    `db:"context" json:"context"`
	Error      string    `db:"error" json:"error"`
	Stack      string    `db:"stack" json:"stack,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
