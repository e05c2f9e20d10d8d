// Package events publishes lifecycle events to Kafka.
package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const publishTimeout = 5 * time.Second

// Config describes the Kafka cluster and topic receiving lifecycle events.
type Config struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON encoded events keyed by entity.
type Publisher struct {
	writer messageWriter
	logger zerolog.Logger
	now    func() time.Time
}

// NewPublisher builds a synchronous Kafka writer. SASL/TLS is enabled when a username is set.
func NewPublisher(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers must be provided")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic must be provided")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return newPublisher(writer, logger), nil
}

func newPublisher(writer messageWriter, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
		now:    time.Now,
	}
}

// Publish encodes event as JSON and writes it under key. A nil publisher drops the event.
func (p *Publisher) Publish(ctx context.Context, key string, event interface{}) error {
	if p == nil || p.writer == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  p.now(),
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	p.logger.Debug().Str("key", key).Msg("lifecycle event published")
	return nil
}

// Close flushes pending writes and releases broker connections.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
