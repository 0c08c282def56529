package irc

// Event types emitted by the session on the event bus
const (
	EventConnectionEstablished = "connection.established"
	EventConnectionLost        = "connection.lost"
	EventConnectFailed         = "connection.failed"
	EventChannelJoined         = "channel.joined"
	EventChannelKicked         = "channel.kicked"
	EventSessionShutdown       = "session.shutdown"
)
