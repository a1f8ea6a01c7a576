package service

import (
	"context"
	"errors"
	"slices"

	"github.com/zlnvch/wire/apperr"
)

// Longest timeline kept by Rebuild and returned by Load.
const timelineLength = 200

// field of user:<key>:unread counting mentions not yet seen
const unreadMentions = "mentions"

// Timeline is the updates of a user and of the user's contacts, newest
// first. Posting fans updates out to it; Rebuild recomputes it from the
// posted lists after the contacts change.
type Timeline struct {
	User    *User
	Updates []*Update

	svc *Service
}

func (s *Service) NewTimeline(user *User) *Timeline {
	return &Timeline{User: user, svc: s}
}

func (t *Timeline) Load(ctx context.Context) error {
	updates, err := t.svc.loadUpdates(ctx, userTimelineKey(t.User.Key), timelineLength)
	if err != nil {
		return err
	}
	t.Updates = updates
	return nil
}

// Rebuild replaces the stored timeline with the newest updates posted by
// the user and the current contacts. Contacts whose account is gone are
// skipped.
func (t *Timeline) Rebuild(ctx context.Context) error {
	st := t.svc.Store
	contacts, err := t.svc.NewContacts(t.User).List(ctx)
	if err != nil {
		return err
	}

	authors := []int64{t.User.Key}
	for _, name := range contacts {
		key, err := t.svc.usernames.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrUserNotFound) {
				continue
			}
			return err
		}
		authors = append(authors, key)
	}

	var keys []int64
	for _, author := range authors {
		vals, err := st.ListRange(ctx, userPostedKey(author))
		if err != nil {
			return storeFailure("read posted updates", err)
		}
		keys = append(keys, parseKeys(vals)...)
	}
	// update keys increase with time, so key order is posting order
	slices.Sort(keys)
	slices.Reverse(keys)
	keys = slices.Compact(keys)
	if len(keys) > timelineLength {
		keys = keys[:timelineLength]
	}

	timeline := userTimelineKey(t.User.Key)
	if err := st.Del(ctx, timeline); err != nil {
		return storeFailure("clear timeline", err)
	}
	for _, key := range keys {
		if err := st.ListPush(ctx, timeline, formatKey(key)); err != nil {
			return storeFailure("rebuild timeline", err)
		}
	}
	t.svc.Logger.Debug(ctx, "timeline rebuilt", "user", t.User.Key, "authors", len(authors), "updates", len(keys))
	return nil
}

// Posted is every update the user posted, newest first.
func (s *Service) Posted(ctx context.Context, user *User) ([]*Update, error) {
	return s.loadUpdates(ctx, userPostedKey(user.Key), 0)
}

// Mentions is every update naming the user, newest first.
func (s *Service) Mentions(ctx context.Context, user *User) ([]*Update, error) {
	return s.loadUpdates(ctx, userMentionsKey(user.Key), 0)
}

// MentionCount is the number of mentions since the last ResetMentions.
func (s *Service) MentionCount(ctx context.Context, user *User) (int64, error) {
	counts, err := s.Store.HashGetAll(ctx, userUnreadKey(user.Key))
	if err != nil {
		return 0, storeFailure("read mention count", err)
	}
	return counts[unreadMentions], nil
}

func (s *Service) ResetMentions(ctx context.Context, user *User) error {
	if err := s.Store.HashSet(ctx, userUnreadKey(user.Key), unreadMentions, 0); err != nil {
		return storeFailure("reset mention count", err)
	}
	return nil
}

// LoadConversation returns the updates of a conversation, oldest first.
func (s *Service) LoadConversation(ctx context.Context, key int64) ([]*Update, error) {
	return s.loadUpdates(ctx, conversationKey(key), 0)
}

// loadUpdates reads up to limit updates (all when limit is 0) listed under
// listKey. Entries whose update is gone or repeated are skipped.
func (s *Service) loadUpdates(ctx context.Context, listKey string, limit int) ([]*Update, error) {
	vals, err := s.Store.ListRange(ctx, listKey)
	if err != nil {
		return nil, storeFailure("list updates", err)
	}

	updates := make([]*Update, 0, len(vals))
	seen := make(map[int64]bool)
	for _, key := range parseKeys(vals) {
		if seen[key] {
			continue
		}
		seen[key] = true

		u := s.NewUpdate(nil)
		if err := u.Load(ctx, key); err != nil {
			if errors.Is(err, apperr.ErrUpdateNotFound) {
				s.Logger.Debug(ctx, "skipping missing update", "update", key, "list", listKey)
				continue
			}
			return nil, err
		}
		updates = append(updates, u)
		if limit > 0 && len(updates) == limit {
			break
		}
	}
	return updates, nil
}

// followers returns the keys of the users who have userKey as a contact.
func (s *Service) followers(ctx context.Context, userKey int64) ([]int64, error) {
	vals, err := s.Store.LexRangePrefix(ctx, userFollowersKey(userKey), "")
	if err != nil {
		return nil, storeFailure("list followers", err)
	}
	return parseKeys(vals), nil
}
