package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/models"
	"github.com/zlnvch/wire/store"
)

const maxUpdateLength = 140

var mentionRe = regexp.MustCompile(`@([^\s@,.;:!?()]+)`)

// Update is a short public status post. It goes to the author's posted
// list and to the timelines of the author and everyone who has the author
// as a contact. A response joins the conversation of the update it
// responds to; a conversation is named after its first update.
type Update struct {
	Key          int64
	UserKey      int64
	Username     string
	Text         string
	Respond      int64
	Conversation int64
	// Mentions are the usernames after an @ that resolved to users.
	Mentions []string
	Created  time.Time

	ValidationErrors []string

	svc  *Service
	user *User
}

// NewUpdate starts an update by user. user may be nil when the update is
// only going to be loaded.
func (s *Service) NewUpdate(user *User) *Update {
	return &Update{svc: s, user: user}
}

func (u *Update) Validate() error {
	var reasons []error
	text := strings.TrimSpace(u.Text)
	if text == "" {
		reasons = append(reasons, apperr.ErrUpdateEmpty)
	}
	if utf8.RuneCountInString(text) > maxUpdateLength {
		reasons = append(reasons, apperr.ErrUpdateTooLong)
	}

	if len(reasons) > 0 {
		err := apperr.Validation("invalid update", reasons...)
		u.ValidationErrors = apperr.ReasonsOf(err)
		return err
	}
	u.ValidationErrors = nil
	return nil
}

// Post validates and publishes the update. Unknown @names are left as
// plain text.
func (u *Update) Post(ctx context.Context) error {
	if u.Key != 0 {
		return apperr.Validation("invalid update", apperr.ErrUpdatePosted)
	}
	if u.user == nil || u.user.Key == 0 {
		return apperr.ErrUserNotFound
	}
	if err := u.Validate(); err != nil {
		return err
	}
	u.Text = strings.TrimSpace(u.Text)

	var parent *Update
	if u.Respond != 0 {
		parent = u.svc.NewUpdate(u.user)
		if err := parent.Load(ctx, u.Respond); err != nil {
			return err
		}
	}

	mentioned, err := u.resolveMentions(ctx)
	if err != nil {
		return err
	}

	key, err := u.svc.Allocator.Next(ctx, ClassUpdate)
	if err != nil {
		return err
	}
	u.Key = key
	u.UserKey = u.user.Key
	u.Username = u.user.Username
	u.Created = time.Unix(u.svc.now().Unix(), 0)

	if parent != nil {
		if err := u.joinConversation(ctx, parent); err != nil {
			return err
		}
	}
	if err := u.writeRecord(ctx); err != nil {
		return err
	}

	st := u.svc.Store
	member := formatKey(u.Key)
	if err := st.ListPushHead(ctx, userPostedKey(u.UserKey), member); err != nil {
		return storeFailure("list posted update", err)
	}
	followers, err := u.svc.followers(ctx, u.UserKey)
	if err != nil {
		return err
	}
	for _, fk := range append([]int64{u.UserKey}, followers...) {
		if err := st.ListPushHead(ctx, userTimelineKey(fk), member); err != nil {
			return storeFailure("fan out update", err)
		}
	}

	for _, mk := range mentioned {
		if err := st.ListPushHead(ctx, userMentionsKey(mk), member); err != nil {
			return storeFailure("list mention", err)
		}
		if _, err := st.HashIncr(ctx, userUnreadKey(mk), unreadMentions, 1); err != nil {
			return storeFailure("count mention", err)
		}
	}
	u.svc.publish(models.Event{Type: models.EventMentioned, UpdateKey: u.Key, SenderKey: u.UserKey}, mentioned)

	u.svc.Logger.Debug(ctx, "update posted", "update", u.Key, "user", u.UserKey, "followers", len(followers), "mentions", len(mentioned))
	return nil
}

// resolveMentions fills Mentions and returns the keys of the mentioned
// users other than the author.
func (u *Update) resolveMentions(ctx context.Context) ([]int64, error) {
	u.Mentions = nil
	var keys []int64
	seen := make(map[string]bool)
	for _, match := range mentionRe.FindAllStringSubmatch(u.Text, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		key, err := u.svc.usernames.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		u.Mentions = append(u.Mentions, name)
		if key != u.user.Key {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// joinConversation appends the update to the parent's conversation,
// starting one at the parent if it has none yet.
func (u *Update) joinConversation(ctx context.Context, parent *Update) error {
	st := u.svc.Store
	if parent.Conversation == 0 {
		parent.Conversation = parent.Key
		if err := st.ListPush(ctx, conversationKey(parent.Key), formatKey(parent.Key)); err != nil {
			return storeFailure("start conversation", err)
		}
		if err := parent.writeRecord(ctx); err != nil {
			return err
		}
	}
	u.Conversation = parent.Conversation
	if err := st.ListPush(ctx, conversationKey(u.Conversation), formatKey(u.Key)); err != nil {
		return storeFailure("append to conversation", err)
	}
	return nil
}

func (u *Update) writeRecord(ctx context.Context) error {
	data, err := json.Marshal(models.UpdateRecord{
		User:         u.UserKey,
		Username:     u.Username,
		Text:         u.Text,
		Respond:      u.Respond,
		Conversation: u.Conversation,
		Mentions:     u.Mentions,
		Created:      u.Created.Unix(),
	})
	if err != nil {
		return err
	}
	if err := u.svc.Store.Set(ctx, updateKey(u.Key), string(data)); err != nil {
		return storeFailure("save update", err)
	}
	return nil
}

func (u *Update) Load(ctx context.Context, key int64) error {
	val, err := u.svc.Store.Get(ctx, updateKey(key))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return apperr.ErrUpdateNotFound
		}
		return storeFailure("load update", err)
	}

	var record models.UpdateRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "update record unreadable", err)
	}

	u.Key = key
	u.UserKey = record.User
	u.Username = record.Username
	u.Text = record.Text
	u.Respond = record.Respond
	u.Conversation = record.Conversation
	u.Mentions = record.Mentions
	u.Created = time.Unix(record.Created, 0)
	return nil
}

// Delete removes the update for its author. Timelines of followers that
// gained or lost the author since the update was posted may keep a dead
// entry, which readers skip.
func (u *Update) Delete(ctx context.Context) error {
	if u.Key == 0 {
		return apperr.ErrUpdateNotFound
	}
	if u.user == nil || u.user.Key != u.UserKey {
		return apperr.ErrNotUpdateOwner
	}

	st := u.svc.Store
	member := formatKey(u.Key)
	if err := st.ListRemove(ctx, userPostedKey(u.UserKey), member); err != nil {
		return storeFailure("remove posted update", err)
	}
	followers, err := u.svc.followers(ctx, u.UserKey)
	if err != nil {
		return err
	}
	for _, fk := range append([]int64{u.UserKey}, followers...) {
		if err := st.ListRemove(ctx, userTimelineKey(fk), member); err != nil {
			return storeFailure("remove update from timeline", err)
		}
	}
	for _, name := range u.Mentions {
		mk, err := u.svc.usernames.Lookup(ctx, name)
		if err != nil {
			continue
		}
		if err := st.ListRemove(ctx, userMentionsKey(mk), member); err != nil {
			return storeFailure("remove mention", err)
		}
	}
	if u.Conversation != 0 {
		if err := st.ListRemove(ctx, conversationKey(u.Conversation), member); err != nil {
			return storeFailure("remove update from conversation", err)
		}
	}

	if err := st.Del(ctx, updateKey(u.Key)); err != nil {
		return storeFailure("delete update", err)
	}
	u.svc.Logger.Debug(ctx, "update deleted", "update", u.Key, "user", u.UserKey)
	u.Key = 0
	return nil
}
