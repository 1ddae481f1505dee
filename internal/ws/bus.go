package ws

import "context"

// Bus relays messages between instances so a client connected to any
// instance sees events produced on every other one.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(m Message)) error
	Close() error
}
