package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/events"
	mqmocks "github.com/zlnvch/wire/mq/mocks"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "user:7:events", events.UserChannel("7"))
}

func TestQueuePublisher_WrapsInEnvelope(t *testing.T) {
	mockMQ := new(mqmocks.MockMQ)
	publisher := events.NewQueuePublisher(mockMQ)
	ctx := context.Background()

	var sent string
	mockMQ.On("Send", ctx, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.String(1)
	}).Return(nil)

	err := publisher.Publish(ctx, "user:2:events", []byte(`{"type":"new_message"}`))
	require.NoError(t, err)

	var env events.Envelope
	require.NoError(t, json.Unmarshal([]byte(sent), &env))
	assert.Equal(t, "user:2:events", env.Channel)
	assert.JSONEq(t, `{"type":"new_message"}`, string(env.Payload))
	mockMQ.AssertExpectations(t)
}

func TestQueuePublisher_RejectsInvalidPayload(t *testing.T) {
	mockMQ := new(mqmocks.MockMQ)
	publisher := events.NewQueuePublisher(mockMQ)

	err := publisher.Publish(context.Background(), "user:2:events", []byte("not json"))
	assert.Error(t, err)
	mockMQ.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestQueuePublisher_SendError(t *testing.T) {
	mockMQ := new(mqmocks.MockMQ)
	publisher := events.NewQueuePublisher(mockMQ)
	ctx := context.Background()

	mockMQ.On("Send", ctx, mock.Anything).Return(errors.New("queue down"))

	err := publisher.Publish(ctx, "user:2:events", []byte(`{}`))
	assert.EqualError(t, err, "queue down")
}
