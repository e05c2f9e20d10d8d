package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishWritesKeyedJSON(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newPublisher(writer, zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	err := publisher.Publish(context.Background(), "project:7", map[string]interface{}{"action": "project_submitted", "entity_id": 7})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	require.Equal(t, "project:7", string(msg.Key))
	require.Equal(t, fixed, msg.Time)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "project_submitted", decoded["action"])

	require.NoError(t, publisher.Close())
	require.True(t, writer.closed)
}

func TestPublishSurfacesFailures(t *testing.T) {
	publisher := newPublisher(&recordingWriter{err: errors.New("broker down")}, zerolog.Nop())
	require.ErrorContains(t, publisher.Publish(context.Background(), "k", struct{}{}), "broker down")

	require.ErrorContains(t, publisher.Publish(context.Background(), "k", make(chan int)), "encode event")
}

func TestNilPublisherIsNoop(t *testing.T) {
	var publisher *Publisher
	require.NoError(t, publisher.Publish(context.Background(), "k", struct{}{}))
	require.NoError(t, publisher.Close())
}

func TestNewPublisherValidatesConfig(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "t"}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}}, zerolog.Nop())
	require.Error(t, err)

	publisher, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "projtrack.lifecycle", Username: "u", Password: "p"}, zerolog.Nop())
	require.NoError(t, err)
	writer, ok := publisher.writer.(*kafka.Writer)
	require.True(t, ok)
	require.NotNil(t, writer.Transport)
}
