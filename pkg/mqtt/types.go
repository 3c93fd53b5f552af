package mqtt

import "context"

// MessageHandler is the callback invoked for received messages.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a thin broker client hiding the paho machinery. Subscriptions
// survive reconnects: the client re-subscribes automatically when the
// connection comes back.
type Client interface {
	// Start initiates the connection. Non-blocking; use AwaitConnection
	// to wait for the broker.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers a handler for a topic filter and sends the
	// subscription packet.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and unsubscribes from the broker.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected.
	AwaitConnection(ctx context.Context) error
}
