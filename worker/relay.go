package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zlnvch/wire/events"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/mq"
	"golang.org/x/time/rate"
)

// EventRelay drains the event queue into the live broker. A message is
// deleted only after it was published, so a broker outage redelivers it
// once the visibility timeout passes.
type EventRelay struct {
	queue  mq.MessageQueue
	broker events.Publisher
	logger logging.Logger
	// retries paces receive attempts after a queue error
	retries *rate.Limiter
}

const (
	visibilityTimeout = 30

	receiveRetriesPerSecond = 1
	receiveRetryBurst       = 3
)

func NewEventRelay(queue mq.MessageQueue, broker events.Publisher, logger logging.Logger) *EventRelay {
	return NewEventRelayWithRetryLimit(queue, broker, logger, rate.Limit(receiveRetriesPerSecond), receiveRetryBurst)
}

// NewEventRelayWithRetryLimit is NewEventRelay with an explicit pace for
// receive retries after queue errors.
func NewEventRelayWithRetryLimit(queue mq.MessageQueue, broker events.Publisher, logger logging.Logger, limit rate.Limit, burst int) *EventRelay {
	return &EventRelay{
		queue:   queue,
		broker:  broker,
		logger:  logger,
		retries: rate.NewLimiter(limit, burst),
	}
}

func (relay *EventRelay) Run(shutdownCtx context.Context) {
	for {
		msg, err := relay.queue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			relay.logger.Warn(shutdownCtx, "event relay receive error", "error", err)
			if err := relay.retries.Wait(shutdownCtx); err != nil {
				return
			}
			continue
		}

		if msg == nil {
			if shutdownCtx.Err() != nil {
				return
			}
			continue
		}

		relay.handle(msg)
	}
}

func (relay *EventRelay) handle(msg *mq.Message) {
	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	var env events.Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil || env.Channel == "" {
		// Poison message: redelivering would fail the same way
		relay.logger.Error(ctx, "dropping malformed event", "message", msg.Id, "error", err)
		relay.delete(ctx, msg)
		return
	}

	if err := relay.broker.Publish(ctx, env.Channel, env.Payload); err != nil {
		relay.logger.Warn(ctx, "event relay publish error", "channel", env.Channel, "error", err)
		return
	}

	relay.delete(ctx, msg)
}

func (relay *EventRelay) delete(ctx context.Context, msg *mq.Message) {
	if err := relay.queue.Delete(ctx, msg); err != nil {
		relay.logger.Warn(ctx, "event relay delete error", "message", msg.Id, "error", err)
	}
}
