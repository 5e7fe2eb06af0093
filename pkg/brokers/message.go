// Package brokers holds the envelope shared by every transport.
package brokers

import (
	"context"
	"errors"
)

// Message is what travels on the wire: the event id (used for broker-side
// deduplication where supported), its type name and the serialized event.
type Message struct {
	ID       string
	TypeName string
	Payload  []byte
}

// HandleFunc processes one delivered message. A non-nil error leaves the
// message unacknowledged so the transport delivers it again.
type HandleFunc func(ctx context.Context, msg Message) error

var ErrClosed = errors.New("transport closed")
