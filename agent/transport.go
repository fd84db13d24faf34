package agent

// Transport is one logical connection to the stream server. Two
// implementations exist: a unidirectional server-push stream and a
// bidirectional websocket. The agent depends only on this interface;
// behavior is identical except direction.
type Transport interface {
	// Open connects and starts delivering inbound messages to
	// onMessage. onClose fires exactly once when the transport dies,
	// with the causing error (nil for a local Close).
	Open(onMessage func([]byte), onClose func(error)) error
	// Send writes one message. Unidirectional transports return
	// ErrSendUnsupported.
	Send(data []byte) error
	// Close tears the connection down. Idempotent.
	Close() error
}

// TransportFactory builds a fresh transport for each connection
// attempt, so a failed transport is never reused.
type TransportFactory func() Transport
