package plugin

import (
	"encoding/json"
	"time"
)

// JSON-RPC 2.0 protocol structures for plugin communication

// ProtocolVersion is sent to plugins in initialize.
const ProtocolVersion = "1.0"

// Request represents a JSON-RPC request or notification
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// message is any line a plugin writes: a response when Method is empty,
// otherwise a notification.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return "plugin error: " + e.Message
}

// InitializeParams represents parameters for plugin initialization
type InitializeParams struct {
	Version string `json:"version"`
	BotNick string `json:"bot_nick"`
	Channel string `json:"channel"`
}

// InitializeResult represents the response from plugin initialization
type InitializeResult struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	// Events lists the session events the plugin wants, "*" for all.
	Events []string `json:"events,omitempty"`
}

// HandleParams carries one matched channel message to the plugin.
type HandleParams struct {
	Nick       string    `json:"nick"`
	Ident      string    `json:"ident"`
	Target     string    `json:"target"`
	Body       string    `json:"body"`
	Words      []string  `json:"words"`
	ReceivedAt time.Time `json:"received_at"`
}

// Reply is one message the plugin wants sent to the channel. A non-empty
// Addressee prefixes it with "<addressee>: ".
type Reply struct {
	Message   string `json:"message"`
	Addressee string `json:"addressee,omitempty"`
}

// HandleResult is the plugin's answer to handle.
type HandleResult struct {
	Replies []Reply `json:"replies"`
}

// EventParams represents parameters for event notification
type EventParams struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// LogParams is sent by plugins in a log notification.
type LogParams struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
