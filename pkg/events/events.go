// Package events implements the push-event channel between a console session and the
// manager's event bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
)

// Status is the connection state of a Channel.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrNotConnected is returned when sending while the channel has no live connection.
var ErrNotConnected = errors.New("event channel not connected")

// Event is an inbound event. Raw holds the complete JSON payload.
type Event struct {
	EventType string          `json:"eventType"`
	Raw       json.RawMessage `json:"-"`
}

// Channel is a push-event connection that reconnects on its own until disconnected.
type Channel interface {
	// Connect starts the connection loop and reports whether the first attempt succeeded.
	Connect(ctx context.Context) bool
	Disconnect()
	Status() Status
	// SubscribeStatusChange registers fn for status changes and returns its removal func.
	SubscribeStatusChange(fn func(Status)) func()
	Send(ctx context.Context, event any) error
	Subscribe(ctx context.Context, eventType string, filter any) (string, error)
	Unsubscribe(ctx context.Context, subscriptionID string) error
	Events() <-chan Event
}
