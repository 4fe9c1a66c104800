package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestPublishWritesJSONMessage(t *testing.T) {
	writer := new(MockWriter)
	p := &Producer{Writer: writer, Logger: logger.NewDiscardLogger()}

	var written []kafka.Message
	writer.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
		Return(nil)

	event := models.ParticipationChangedEvent{EventID: "event-1", UserID: "user-1", Status: "registered", CurrentParticipants: 3}
	err := p.Publish(context.Background(), "eventhub.participation.registered", "event-1", event)
	require.NoError(t, err)

	require.Len(t, written, 1)
	assert.Equal(t, "eventhub.participation.registered", written[0].Topic)
	assert.Equal(t, []byte("event-1"), written[0].Key)

	var decoded models.ParticipationChangedEvent
	require.NoError(t, json.Unmarshal(written[0].Value, &decoded))
	assert.Equal(t, 3, decoded.CurrentParticipants)
	writer.AssertExpectations(t)
}

func TestPublishReturnsWriterError(t *testing.T) {
	writer := new(MockWriter)
	p := &Producer{Writer: writer, Logger: logger.NewDiscardLogger()}
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.Publish(context.Background(), "topic", "key", map[string]string{"a": "b"})
	assert.EqualError(t, err, "broker down")
}

func TestPublishRejectsUnmarshalableValue(t *testing.T) {
	writer := new(MockWriter)
	p := &Producer{Writer: writer, Logger: logger.NewDiscardLogger()}

	err := p.Publish(context.Background(), "topic", "key", make(chan int))
	assert.Error(t, err)
	writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "t", "k", nil))
}
