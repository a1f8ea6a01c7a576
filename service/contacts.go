package service

import (
	"context"
	"errors"

	"github.com/zlnvch/wire/apperr"
)

// Contacts is a user's address book, a set of usernames ordered by their
// bytes. It is not reciprocal. Having someone as a contact puts their
// updates on the user's timeline, so every change rebuilds it.
type Contacts struct {
	User *User

	svc *Service
}

func (s *Service) NewContacts(user *User) *Contacts {
	return &Contacts{User: user, svc: s}
}

func (c *Contacts) Add(ctx context.Context, username string) error {
	contactKey, err := c.svc.usernames.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return apperr.ErrContactInvalid
		}
		return err
	}

	added, err := c.svc.Store.LexAdd(ctx, userContactsKey(c.User.Key), username)
	if err != nil {
		return storeFailure("add contact", err)
	}
	if !added {
		return apperr.ErrContactExists
	}
	if _, err := c.svc.Store.LexAdd(ctx, userFollowersKey(contactKey), formatKey(c.User.Key)); err != nil {
		return storeFailure("add follower", err)
	}
	return c.svc.NewTimeline(c.User).Rebuild(ctx)
}

// Delete removes username; removing an absent contact is not an error.
func (c *Contacts) Delete(ctx context.Context, username string) error {
	if err := c.svc.Store.LexRemove(ctx, userContactsKey(c.User.Key), username); err != nil {
		return storeFailure("delete contact", err)
	}
	contactKey, err := c.svc.usernames.Lookup(ctx, username)
	switch {
	case err == nil:
		if err := c.svc.Store.LexRemove(ctx, userFollowersKey(contactKey), formatKey(c.User.Key)); err != nil {
			return storeFailure("remove follower", err)
		}
	case !errors.Is(err, apperr.ErrUserNotFound):
		return err
	}
	return c.svc.NewTimeline(c.User).Rebuild(ctx)
}

// Search returns the contacts starting with prefix, compared byte for
// byte like usernames are.
func (c *Contacts) Search(ctx context.Context, prefix string) ([]string, error) {
	members, err := c.svc.Store.LexRangePrefix(ctx, userContactsKey(c.User.Key), prefix)
	if err != nil {
		return nil, storeFailure("search contacts", err)
	}
	return members, nil
}

func (c *Contacts) List(ctx context.Context) ([]string, error) {
	return c.Search(ctx, "")
}
