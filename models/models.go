package models

// Records as they are serialized under user:<key>, thread:<key> and
// message:<key>. Field names of UserRecord match the data already stored
// by earlier deployments and must not change.

type UserRecord struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type ThreadRecord struct {
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
	Creator    int64    `json:"creator"`
	Encrypted  bool     `json:"encrypted"`
	Salt       string   `json:"salt,omitempty"`
	Marker     string   `json:"marker,omitempty"`
	Created    int64    `json:"created"`
}

type MessageRecord struct {
	Thread         int64  `json:"thread"`
	Sender         int64  `json:"sender"`
	SenderUsername string `json:"sender_username"`
	Body           string `json:"body"`
	Encrypted      bool   `json:"encrypted"`
	Sent           int64  `json:"sent"`
}

// UpdateRecord is a status update under update:<key>.
type UpdateRecord struct {
	User         int64    `json:"user"`
	Username     string   `json:"username"`
	Text         string   `json:"text"`
	Respond      int64    `json:"respond,omitempty"`
	Conversation int64    `json:"conversation,omitempty"`
	Mentions     []string `json:"mentions,omitempty"`
	Created      int64    `json:"created"`
}

type EventType string

const (
	EventNewMessage    EventType = "new_message"
	EventThreadDeleted EventType = "thread_deleted"
	EventAddedToThread EventType = "added_to_thread"
	EventMentioned     EventType = "mentioned"
)

// Event is published on user:<key>:events whenever thread activity concerns that user.
type Event struct {
	Id         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Type       EventType `json:"type"`
	UserKey    int64     `json:"userKey"`
	ThreadKey  int64     `json:"threadKey,omitempty"`
	MessageKey int64     `json:"messageKey,omitempty"`
	SenderKey  int64     `json:"senderKey,omitempty"`
	UpdateKey  int64     `json:"updateKey,omitempty"`
	Created    int64     `json:"created"`
}
