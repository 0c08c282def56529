package constants

import "time"

// Connection timing constants
const (
	// ConnectBackoff is the fixed delay between failed connection attempts.
	// There is no ceiling on the number of attempts.
	ConnectBackoff = 5 * time.Second

	// ReconnectCooldown is the wait after an empty read before reconnecting
	ReconnectCooldown = 2 * time.Second

	// RejoinCooldown is the wait after being kicked before rejoining the channel
	RejoinCooldown = 2 * time.Second

	// RegisterPacing is the pause between the NICK, USER and JOIN lines
	RegisterPacing = 1 * time.Second

	// MaxLineLength is the read buffer size. Longer inbound lines are dropped.
	MaxLineLength = 8192

	// WriteTimeout bounds a single write to the transport
	WriteTimeout = 10 * time.Second
)

// Dispatch constants
const (
	// WorkerPoolSize is the default number of concurrent handler invocations
	WorkerPoolSize = 8

	// WorkerQueueSize is the default number of pending handler invocations
	WorkerQueueSize = 64

	// HandlerDrainTimeout is how long shutdown waits for in-flight handlers
	HandlerDrainTimeout = 3 * time.Second

	// HandlerTimeout bounds the outbound calls a built-in handler makes
	HandlerTimeout = 30 * time.Second
)

// Storage constants
const (
	// LogBufferSize is the number of channel lines buffered before a forced flush
	LogBufferSize = 100

	// LogFlushInterval is how often buffered channel lines are written
	LogFlushInterval = 5 * time.Second
)

// Protocol constants
const (
	// FarewellMessage is sent to the operator on the shutdown signal
	FarewellMessage = "Goodnight!"

	// KickAcknowledgement is sent to the channel after rejoining from a kick
	KickAcknowledgement = "rude"
)
