// Package events carries thread activity notifications to the users they
// concern. Every user has one channel; payloads are JSON models.Event.
package events

import (
	"context"
	"encoding/json"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// Broker is a Publisher that can also deliver a channel's messages to a
// handler until ctx is done.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

// UserChannel names the channel a user's events are published on.
func UserChannel(userKey string) string {
	return "user:" + userKey + ":events"
}

// Envelope is how an event travels through the message queue before the
// relay hands it to a Broker.
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}
