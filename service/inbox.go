package service

import (
	"context"
	"errors"

	"github.com/zlnvch/wire/apperr"
)

// Inbox is every thread a user belongs to, in membership order. It is
// assembled on read and never stored.
type Inbox struct {
	User    *User
	Threads []*Thread

	svc *Service
}

func (s *Service) NewInbox(user *User) *Inbox {
	return &Inbox{User: user, svc: s}
}

func (i *Inbox) LoadThreads(ctx context.Context) error {
	keys, err := i.svc.memberships.List(ctx, i.User.Key)
	if err != nil {
		return err
	}

	threads := make([]*Thread, 0, len(keys))
	for _, key := range keys {
		t := i.svc.NewThread(i.User)
		if err := t.Load(ctx, key); err != nil {
			if errors.Is(err, apperr.ErrThreadNotFound) {
				// Membership written before the record, or a delete in flight
				i.svc.Logger.Warn(ctx, "skipping missing thread", "thread", key, "user", i.User.Key)
				continue
			}
			return err
		}
		threads = append(threads, t)
	}

	i.Threads = threads
	return nil
}

// UnreadCount sums the user's unread counts over the loaded threads.
func (i *Inbox) UnreadCount() int64 {
	var total int64
	for _, t := range i.Threads {
		total += t.UnreadCount()
	}
	return total
}

func (i *Inbox) MarkAllRead(ctx context.Context) error {
	for _, t := range i.Threads {
		if err := t.ResetUnreadCount(ctx); err != nil {
			return err
		}
	}
	return nil
}
