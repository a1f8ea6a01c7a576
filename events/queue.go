package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zlnvch/wire/mq"
)

// QueuePublisher sends events to a durable queue instead of publishing them
// directly. A relay worker drains the queue into the live Broker.
type QueuePublisher struct {
	queue mq.MessageQueue
}

func NewQueuePublisher(queue mq.MessageQueue) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

func (p *QueuePublisher) Publish(ctx context.Context, channel string, message []byte) error {
	if !json.Valid(message) {
		return fmt.Errorf("event for %s is not valid JSON", channel)
	}
	body, err := json.Marshal(Envelope{Channel: channel, Payload: message})
	if err != nil {
		return err
	}
	return p.queue.Send(ctx, string(body))
}
