// Package mq is the durable queue events pass through when the events
// backend is "sqs".
package mq

import "context"

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive long-polls for one message. A nil message with a nil error
	// means the poll came back empty.
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	// Id is the receipt handle needed to delete the message.
	Id   string
	Body string
}
