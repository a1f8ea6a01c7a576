package service

import (
	"strconv"

	"github.com/zlnvch/wire/apperr"
)

// Store key layout. These names are shared with data written by earlier
// deployments and must not change.
const (
	listUsers     = "list:users"
	listUsernames = "list:usernames"
)

func formatKey(key int64) string {
	return strconv.FormatInt(key, 10)
}

func usernameKey(username string) string {
	return "username:" + username
}

func userKey(key int64) string {
	return "user:" + formatKey(key)
}

func userThreadsKey(key int64) string {
	return userKey(key) + ":threads"
}

func userContactsKey(key int64) string {
	return userKey(key) + ":contacts"
}

func userPostedKey(key int64) string {
	return userKey(key) + ":posted"
}

func userTimelineKey(key int64) string {
	return userKey(key) + ":timeline"
}

func userMentionsKey(key int64) string {
	return userKey(key) + ":mentions"
}

func userFollowersKey(key int64) string {
	return userKey(key) + ":followers"
}

// userUnreadKey holds per-user counters that are not tied to a thread.
func userUnreadKey(key int64) string {
	return userKey(key) + ":unread"
}

func updateKey(key int64) string {
	return "update:" + formatKey(key)
}

func conversationKey(key int64) string {
	return "conversation:" + formatKey(key)
}

func threadKey(key int64) string {
	return "thread:" + formatKey(key)
}

func threadMessagesKey(key int64) string {
	return threadKey(key) + ":messages"
}

func threadUnreadKey(key int64) string {
	return threadKey(key) + ":unread"
}

func messageKey(key int64) string {
	return "message:" + formatKey(key)
}

func counterKey(class string) string {
	return "autoinc:" + class
}

func storeFailure(op string, err error) error {
	return apperr.StoreUnavailable(op, err)
}
