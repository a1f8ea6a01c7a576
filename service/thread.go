package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/models"
	"github.com/zlnvch/wire/store"
)

type ThreadState int

const (
	ThreadNew ThreadState = iota
	ThreadSaved
	ThreadActive
	ThreadDeleted
)

func (s ThreadState) String() string {
	switch s {
	case ThreadNew:
		return "NEW"
	case ThreadSaved:
		return "SAVED"
	case ThreadActive:
		return "ACTIVE"
	case ThreadDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// RecipientDelimiter separates usernames in recipient input.
const RecipientDelimiter = ","

// Thread is a conversation seen by one member, the acting user. Unread
// counts and unsubscribe apply to that member only.
type Thread struct {
	Key        int64
	Subject    string
	Recipients []string
	CreatorKey int64
	Encrypted  bool
	Created    time.Time
	Messages   []*Message
	// Decrypted is true once Decrypt replaced every body with plaintext.
	Decrypted bool
	// InvalidRecipients holds the tokens rejected by the last ParseRecipients.
	InvalidRecipients []string
	State             ThreadState

	svc        *Service
	user       *User
	saved      []string
	memberKeys map[string]int64
	unread     map[int64]int64

	salt   []byte
	marker string
	key    []byte
}

func (s *Service) NewThread(user *User) *Thread {
	return &Thread{
		svc:        s,
		user:       user,
		CreatorKey: user.Key,
		memberKeys: make(map[string]int64),
		unread:     make(map[int64]int64),
	}
}

// ParseRecipients resolves the delimited usernames in text and adds them
// to the recipients. Either every token resolves or nothing changes and an
// InvalidRecipients error lists the tokens that did not.
func (t *Thread) ParseRecipients(ctx context.Context, text string) error {
	var names []string
	for _, token := range strings.Split(text, RecipientDelimiter) {
		token = strings.TrimSpace(token)
		if token == "" || slices.Contains(names, token) {
			continue
		}
		names = append(names, token)
	}

	var invalid []string
	resolved := make(map[string]int64, len(names))
	for _, name := range names {
		key, err := t.svc.usernames.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrUserNotFound) {
				invalid = append(invalid, name)
				continue
			}
			return err
		}
		resolved[name] = key
	}

	if len(invalid) > 0 {
		t.InvalidRecipients = invalid
		return apperr.InvalidRecipients(invalid)
	}
	t.InvalidRecipients = nil

	for _, name := range names {
		t.memberKeys[name] = resolved[name]
		if !slices.Contains(t.Recipients, name) {
			t.Recipients = append(t.Recipients, name)
		}
	}
	return nil
}

// IsMember reports whether username was a recipient at the last save or load.
func (t *Thread) IsMember(username string) bool {
	return slices.Contains(t.saved, username)
}

// Save persists the thread. The first save assigns the key, adds the
// creator and puts the thread into every member's index. Later saves
// apply only the recipients added or removed since the previous save.
func (t *Thread) Save(ctx context.Context) error {
	if t.State == ThreadDeleted {
		return apperr.ErrThreadNotFound
	}

	first := t.Key == 0
	if first {
		if len(t.Recipients) == 0 {
			return apperr.Validation("invalid thread", apperr.ErrNoRecipients)
		}
		if !slices.Contains(t.Recipients, t.user.Username) {
			t.Recipients = append([]string{t.user.Username}, t.Recipients...)
		}
		t.memberKeys[t.user.Username] = t.user.Key

		key, err := t.svc.Allocator.Next(ctx, ClassThread)
		if err != nil {
			return err
		}
		t.Key = key
		t.CreatorKey = t.user.Key
		t.Created = time.Unix(t.svc.now().Unix(), 0)
	}

	if err := t.writeRecord(ctx); err != nil {
		return err
	}

	var added, removed []string
	for _, name := range t.Recipients {
		if !slices.Contains(t.saved, name) {
			added = append(added, name)
		}
	}
	for _, name := range t.saved {
		if !slices.Contains(t.Recipients, name) {
			removed = append(removed, name)
		}
	}

	addedKeys, err := t.resolve(ctx, added)
	if err != nil {
		return err
	}
	removedKeys, err := t.resolve(ctx, removed)
	if err != nil {
		return err
	}

	unreadKey := threadUnreadKey(t.Key)
	for _, uk := range addedKeys {
		if err := t.svc.memberships.Upsert(ctx, uk, t.Key); err != nil {
			return err
		}
		if _, ok := t.unread[uk]; !ok {
			if err := t.svc.Store.HashSet(ctx, unreadKey, formatKey(uk), 0); err != nil {
				return storeFailure("init unread count", err)
			}
			t.unread[uk] = 0
		}
	}
	for _, uk := range removedKeys {
		if err := t.svc.memberships.Remove(ctx, uk, t.Key); err != nil {
			return err
		}
		if err := t.svc.Store.HashDel(ctx, unreadKey, formatKey(uk)); err != nil {
			return storeFailure("drop unread count", err)
		}
		delete(t.unread, uk)
	}

	t.saved = slices.Clone(t.Recipients)
	if t.State == ThreadNew {
		t.State = ThreadSaved
	}

	t.svc.publish(models.Event{Type: models.EventAddedToThread, ThreadKey: t.Key, SenderKey: t.user.Key}, t.without(addedKeys, t.user.Key))
	return nil
}

func (t *Thread) writeRecord(ctx context.Context) error {
	record := models.ThreadRecord{
		Subject:    t.Subject,
		Recipients: t.Recipients,
		Creator:    t.CreatorKey,
		Encrypted:  t.Encrypted,
		Marker:     t.marker,
		Created:    t.Created.Unix(),
	}
	if t.Encrypted {
		record.Salt = base64.StdEncoding.EncodeToString(t.salt)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := t.svc.Store.Set(ctx, threadKey(t.Key), string(data)); err != nil {
		return storeFailure("save thread", err)
	}
	return nil
}

// resolve maps usernames to user keys. A username whose index entry is gone
// is skipped: there is nothing left to keep consistent for it.
func (t *Thread) resolve(ctx context.Context, names []string) ([]int64, error) {
	keys := make([]int64, 0, len(names))
	for _, name := range names {
		if key, ok := t.memberKeys[name]; ok {
			keys = append(keys, key)
			continue
		}
		key, err := t.svc.usernames.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrUserNotFound) {
				t.svc.Logger.Warn(ctx, "thread member has no username entry", "thread", t.Key, "username", name)
				continue
			}
			return nil, err
		}
		t.memberKeys[name] = key
		keys = append(keys, key)
	}
	return keys, nil
}

func (t *Thread) without(keys []int64, skip int64) []int64 {
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		if k != skip {
			out = append(out, k)
		}
	}
	return out
}

// AddMessage appends a sent message and counts it as unread for every
// member except its sender.
func (t *Thread) AddMessage(ctx context.Context, m *Message) error {
	if t.State == ThreadDeleted {
		return apperr.ErrThreadNotFound
	}
	if t.Key == 0 {
		return apperr.ErrThreadUnsaved
	}
	if m.Key == 0 {
		return apperr.ErrMessageUnsent
	}

	if err := t.svc.Store.ListPush(ctx, threadMessagesKey(t.Key), formatKey(m.Key)); err != nil {
		return storeFailure("append message", err)
	}

	members, err := t.resolve(ctx, t.Recipients)
	if err != nil {
		return err
	}
	others := t.without(members, m.SenderKey)

	unreadKey := threadUnreadKey(t.Key)
	for _, uk := range others {
		n, err := t.svc.Store.HashIncr(ctx, unreadKey, formatKey(uk), 1)
		if err != nil {
			return storeFailure("count unread", err)
		}
		t.unread[uk] = n
	}

	if t.Decrypted && m.plaintext != "" {
		m.Body = m.plaintext
	}
	t.Messages = append(t.Messages, m)
	t.State = ThreadActive

	t.svc.publish(models.Event{Type: models.EventNewMessage, ThreadKey: t.Key, MessageKey: m.Key, SenderKey: m.SenderKey}, others)
	return nil
}

// Load reads the thread, its messages in send order and the unread counts.
// Messages of an encrypted thread stay encrypted until Decrypt.
func (t *Thread) Load(ctx context.Context, key int64) error {
	val, err := t.svc.Store.Get(ctx, threadKey(key))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return apperr.ErrThreadNotFound
		}
		return storeFailure("load thread", err)
	}

	var record models.ThreadRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "thread record unreadable", err)
	}

	var salt []byte
	if record.Encrypted {
		salt, err = base64.StdEncoding.DecodeString(record.Salt)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, "thread salt unreadable", err)
		}
	}

	messageVals, err := t.svc.Store.ListRange(ctx, threadMessagesKey(key))
	if err != nil {
		return storeFailure("list messages", err)
	}
	messages := make([]*Message, 0, len(messageVals))
	for _, mk := range parseKeys(messageVals) {
		m := t.svc.NewMessage(nil, t)
		if err := m.Load(ctx, mk); err != nil {
			if errors.Is(err, apperr.ErrMessageNotFound) {
				t.svc.Logger.Warn(ctx, "skipping missing message", "thread", key, "message", mk)
				continue
			}
			return err
		}
		messages = append(messages, m)
	}

	counts, err := t.svc.Store.HashGetAll(ctx, threadUnreadKey(key))
	if err != nil {
		return storeFailure("load unread counts", err)
	}
	unread := make(map[int64]int64, len(counts))
	for field, n := range counts {
		if uk := parseKeys([]string{field}); len(uk) == 1 {
			unread[uk[0]] = n
		}
	}

	t.Key = key
	t.Subject = record.Subject
	t.Recipients = slices.Clone(record.Recipients)
	t.CreatorKey = record.Creator
	t.Encrypted = record.Encrypted
	t.Created = time.Unix(record.Created, 0)
	t.Messages = messages
	t.Decrypted = false
	t.InvalidRecipients = nil
	t.saved = slices.Clone(record.Recipients)
	t.unread = unread
	t.salt = salt
	t.marker = record.Marker
	t.key = nil

	t.State = ThreadSaved
	if len(messages) > 0 {
		t.State = ThreadActive
	}
	return nil
}

// UnreadCount is the acting member's unread count.
func (t *Thread) UnreadCount() int64 {
	return t.unread[t.user.Key]
}

// ResetUnreadCount marks the thread read for the acting member only.
func (t *Thread) ResetUnreadCount(ctx context.Context) error {
	if t.Key == 0 {
		return apperr.ErrThreadUnsaved
	}
	if err := t.svc.Store.HashSet(ctx, threadUnreadKey(t.Key), formatKey(t.user.Key), 0); err != nil {
		return storeFailure("reset unread count", err)
	}
	t.unread[t.user.Key] = 0
	return nil
}

// Unsubscribe removes the acting member from the thread. Other members
// keep it.
func (t *Thread) Unsubscribe(ctx context.Context) error {
	if t.Key == 0 {
		return apperr.ErrThreadUnsaved
	}
	t.memberKeys[t.user.Username] = t.user.Key
	t.Recipients = slices.DeleteFunc(slices.Clone(t.Recipients), func(name string) bool {
		return name == t.user.Username
	})
	return t.Save(ctx)
}

// Delete removes the thread, all of its messages and its key from every
// member's index. Index entries go first so readers never find a
// membership pointing at a half-deleted thread for long.
func (t *Thread) Delete(ctx context.Context) error {
	if t.Key == 0 {
		return apperr.ErrThreadUnsaved
	}

	members, err := t.resolve(ctx, t.saved)
	if err != nil {
		return err
	}
	for _, uk := range members {
		if err := t.svc.memberships.Remove(ctx, uk, t.Key); err != nil {
			return err
		}
	}

	messageVals, err := t.svc.Store.ListRange(ctx, threadMessagesKey(t.Key))
	if err != nil {
		return storeFailure("list messages", err)
	}
	keys := make([]string, 0, len(messageVals)+3)
	for _, mk := range parseKeys(messageVals) {
		keys = append(keys, messageKey(mk))
	}
	keys = append(keys, threadKey(t.Key), threadMessagesKey(t.Key), threadUnreadKey(t.Key))
	if err := t.svc.Store.Del(ctx, keys...); err != nil {
		return storeFailure("delete thread", err)
	}

	t.Messages = nil
	t.State = ThreadDeleted
	t.svc.publish(models.Event{Type: models.EventThreadDeleted, ThreadKey: t.Key, SenderKey: t.user.Key}, t.without(members, t.user.Key))
	return nil
}

// DeleteMessage removes m from the thread. Whether the acting user may do
// so is for the caller to decide.
func (t *Thread) DeleteMessage(ctx context.Context, m *Message) error {
	if m.ThreadKey != t.Key {
		return apperr.ErrMessageNotFound
	}
	if err := m.Delete(ctx); err != nil {
		return err
	}
	t.Messages = slices.DeleteFunc(t.Messages, func(x *Message) bool {
		return x.Key == m.Key
	})
	return nil
}
