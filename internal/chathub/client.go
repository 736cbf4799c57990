package chathub

// Client is the interface for any type of connection the gateway routes
// frames to. It abstracts the underlying transport, allowing the gateway
// and room manager to treat websocket sessions and test doubles uniformly.
type Client interface {
	// ConnID returns the identifier assigned by the registry at attach time.
	ConnID() string

	// Send queues a frame for delivery. It must never block; it reports
	// false when the connection is gone or its queue is full, which the
	// room manager treats as a natural leave.
	Send(f Frame) bool

	// Close tears down the transport. Safe to call more than once.
	Close()
}
