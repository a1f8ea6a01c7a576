package service

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/wire/events"
	"github.com/zlnvch/wire/models"
)

// publish sends a copy of event to each user in userKeys, with its own id,
// sequence number and recipient. It returns immediately; delivery runs in
// the background and failures are only logged.
func (s *Service) publish(event models.Event, userKeys []int64) {
	if s.Events == nil || len(userKeys) == 0 {
		return
	}
	event.Created = s.now().Unix()

	go func() {
		ctx := context.Background()
		for _, uk := range userKeys {
			id, err := uuid.NewV7()
			if err != nil {
				s.Logger.Error(ctx, "event id generation failed", "error", err)
				return
			}
			seq, err := s.Allocator.Next(ctx, ClassEvent)
			if err != nil {
				s.Logger.Warn(ctx, "event sequence allocation failed", "error", err)
				continue
			}

			e := event
			e.Id = id.String()
			e.Seq = seq
			e.UserKey = uk
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := s.Events.Publish(ctx, events.UserChannel(formatKey(uk)), payload); err != nil {
				s.Logger.Warn(ctx, "event publish failed", "type", e.Type, "user", uk, "error", err)
			}
		}
	}()
}
