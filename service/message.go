package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/models"
	"github.com/zlnvch/wire/store"
)

type Message struct {
	Key            int64
	ThreadKey      int64
	SenderKey      int64
	SenderUsername string
	// Body is ciphertext for messages of an encrypted thread until the
	// thread is decrypted.
	Body      string
	SentAt    time.Time
	Encrypted bool

	ValidationErrors []string

	svc       *Service
	sender    *User
	thread    *Thread
	plaintext string
	// stored is the body as persisted, ciphertext in an encrypted thread
	stored string
}

// NewMessage starts a message by sender in thread. Both may be nil when
// the message is only going to be loaded.
func (s *Service) NewMessage(sender *User, thread *Thread) *Message {
	return &Message{svc: s, sender: sender, thread: thread}
}

func (m *Message) Update(fields map[string]string) {
	m.Body = fields["body"]
}

func (m *Message) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		err := apperr.Validation("invalid message", apperr.ErrEmptyBody)
		m.ValidationErrors = apperr.ReasonsOf(err)
		return err
	}
	m.ValidationErrors = nil
	return nil
}

// Send validates and persists the message. In an encrypted thread the body
// is sealed with the thread key, so the thread must be unlocked.
func (m *Message) Send(ctx context.Context) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.thread == nil || m.thread.Key == 0 {
		return apperr.ErrThreadUnsaved
	}
	if m.thread.State == ThreadDeleted {
		return apperr.ErrThreadNotFound
	}
	if m.thread.Encrypted && !m.thread.Unlocked() {
		return apperr.ErrThreadLocked
	}

	body := m.Body
	if m.thread.Encrypted {
		sealed, err := m.thread.seal(body)
		if err != nil {
			return err
		}
		body = sealed
	}

	key, err := m.svc.Allocator.Next(ctx, ClassMessage)
	if err != nil {
		return err
	}
	sentAt := m.svc.now()

	record := models.MessageRecord{
		Thread:    m.thread.Key,
		Body:      body,
		Encrypted: m.thread.Encrypted,
		Sent:      sentAt.Unix(),
	}
	if m.sender != nil {
		record.Sender = m.sender.Key
		record.SenderUsername = m.sender.Username
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := m.svc.Store.Set(ctx, messageKey(key), string(data)); err != nil {
		return storeFailure("save message", err)
	}

	m.Key = key
	m.ThreadKey = record.Thread
	m.SenderKey = record.Sender
	m.SenderUsername = record.SenderUsername
	m.SentAt = time.Unix(record.Sent, 0)
	m.Encrypted = record.Encrypted
	m.plaintext = m.Body
	m.stored = body
	m.Body = body
	return nil
}

func (m *Message) Load(ctx context.Context, key int64) error {
	val, err := m.svc.Store.Get(ctx, messageKey(key))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return apperr.ErrMessageNotFound
		}
		return storeFailure("load message", err)
	}

	var record models.MessageRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "message record unreadable", err)
	}

	m.Key = key
	m.ThreadKey = record.Thread
	m.SenderKey = record.Sender
	m.SenderUsername = record.SenderUsername
	m.Body = record.Body
	m.stored = record.Body
	m.SentAt = time.Unix(record.Sent, 0)
	m.Encrypted = record.Encrypted
	m.plaintext = ""
	return nil
}

// Delete removes the message record and its entry in the thread's order.
func (m *Message) Delete(ctx context.Context) error {
	if m.Key == 0 {
		return apperr.ErrMessageNotFound
	}
	if err := m.svc.Store.ListRemove(ctx, threadMessagesKey(m.ThreadKey), formatKey(m.Key)); err != nil {
		return storeFailure("remove message from thread", err)
	}
	if err := m.svc.Store.Del(ctx, messageKey(m.Key)); err != nil {
		return storeFailure("delete message", err)
	}
	return nil
}
