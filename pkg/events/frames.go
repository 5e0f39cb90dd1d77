package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	prefixEvent        = "EVENT:"
	prefixSubscribe    = "SUBSCRIBE:"
	prefixSubscribed   = "SUBSCRIBED:"
	prefixUnsubscribe  = "UNSUBSCRIBE:"
	prefixUnauthorized = "UNAUTHORIZED:"
)

type subscription struct {
	SubscriptionID string `json:"subscriptionId"`
	EventType      string `json:"eventType,omitempty"`
	Filter         any    `json:"filter,omitempty"`
}

func encodeFrame(prefix string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", prefix, err)
	}
	return append([]byte(prefix), payload...), nil
}

// splitFrame returns the frame prefix (including the colon) and payload.
func splitFrame(message []byte) (string, []byte) {
	i := bytes.IndexByte(message, ':')
	if i < 0 {
		return "", message
	}
	return string(message[:i+1]), message[i+1:]
}

func decodeEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	e.Raw = append(json.RawMessage(nil), payload...)
	return e, nil
}
