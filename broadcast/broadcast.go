// Package broadcast shares cache invalidations between processes.
//
// Several clients of the same backend (CLI sessions, workers, devices behind
// one gateway) each hold their own query cache. When one of them completes a
// mutation, the keys it reconciled are published on a shared channel and the
// others invalidate the same keys, so their observers refetch. Messages never
// carry entity data: a receiver always reloads from the backend.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dailyyoga/studysync/querykey"
)

// Type is the cache operation a message asks for
type Type string

const (
	// TypeInvalidate marks keys stale
	TypeInvalidate Type = "invalidate"
	// TypeRemove drops keys
	TypeRemove Type = "remove"
	// TypeClear drops every entry
	TypeClear Type = "clear"
)

// Message is one invalidation sent between processes
type Message struct {
	// Origin identifies the sending bridge; receivers ignore their own messages
	Origin   string         `json:"origin"`
	Type     Type           `json:"type"`
	Resource string         `json:"resource,omitempty"`
	Keys     []querykey.Key `json:"keys,omitempty"`
	At       time.Time      `json:"at"`
}

// Validate checks that the message can be applied
func (m *Message) Validate() error {
	if m.Origin == "" {
		return ErrInvalidMessage("origin is required")
	}
	switch m.Type {
	case TypeInvalidate, TypeRemove:
		if len(m.Keys) == 0 {
			return ErrInvalidMessage("keys are required for " + string(m.Type))
		}
	case TypeClear:
	default:
		return ErrInvalidMessage("unknown type " + string(m.Type))
	}
	return nil
}

// Encode renders the message as JSON
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses and validates a JSON message
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrDecode(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Handler receives messages from other processes
type Handler func(ctx context.Context, msg *Message) error

// Broadcaster is a transport for invalidation messages
type Broadcaster interface {
	// Name identifies the transport in logs and metrics
	Name() string
	// Publish sends msg to every subscriber, including this process
	Publish(ctx context.Context, msg *Message) error
	// Subscribe delivers messages to handler until ctx is done or the
	// broadcaster is closed. It returns once the subscription is active.
	Subscribe(ctx context.Context, handler Handler) error
	// Close stops every subscription and releases the connection
	Close() error
}
