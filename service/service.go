// Package service is the messaging and identity layer: users, threads,
// messages, inboxes and contacts kept as hand-maintained indexes over a
// store.WireStore.
//
// Nothing here holds a global handle. Every User, Thread, Message, Inbox
// and Contacts value is created by a Service and reaches the store,
// broker and crypto through it.
package service

import (
	"time"

	"github.com/zlnvch/wire/cryptox"
	"github.com/zlnvch/wire/events"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/store"
)

type Service struct {
	Store     store.WireStore
	Events    events.Publisher
	Hasher    cryptox.PasswordHasher
	Crypto    cryptox.Provider
	Logger    logging.Logger
	Allocator *Allocator

	usernames   usernameIndex
	memberships membershipIndex
	now         func() time.Time
}

// NewService wires the layer. A nil publisher disables event publication
// and a nil logger discards log output.
func NewService(
	store store.WireStore,
	publisher events.Publisher,
	hasher cryptox.PasswordHasher,
	crypto cryptox.Provider,
	logger logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		Store:       store,
		Events:      publisher,
		Hasher:      hasher,
		Crypto:      crypto,
		Logger:      logger,
		Allocator:   NewAllocator(store),
		usernames:   usernameIndex{store: store},
		memberships: membershipIndex{store: store},
		now:         time.Now,
	}
}

// SetClock replaces the time source used for created/sent timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
