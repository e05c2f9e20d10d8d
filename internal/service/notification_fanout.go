package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/observability"
)

// fanoutEnvelope is what nodes exchange over Redis and NATS.
type fanoutEnvelope struct {
	Origin       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type subscription struct {
	ch chan dto.NotificationResponse
}

// subscriberHub tracks the live streams opened on this node. Delivery never
// blocks: a subscriber whose buffer is full misses the frame and can catch up
// through the list endpoint.
type subscriberHub struct {
	mu     sync.RWMutex
	byUser map[uint][]*subscription
}

func newSubscriberHub() *subscriberHub {
	return &subscriberHub{byUser: make(map[uint][]*subscription)}
}

func (h *subscriberHub) add(userID uint) *subscription {
	sub := &subscription{ch: make(chan dto.NotificationResponse, notificationBufferSize)}

	h.mu.Lock()
	h.byUser[userID] = append(h.byUser[userID], sub)
	h.mu.Unlock()
	return sub
}

func (h *subscriberHub) remove(userID uint, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.byUser[userID]
	for i, candidate := range subs {
		if candidate != sub {
			continue
		}
		close(sub.ch)
		subs = append(subs[:i], subs[i+1:]...)
		break
	}
	if len(subs) == 0 {
		delete(h.byUser, userID)
		return
	}
	h.byUser[userID] = subs
}

func (h *subscriberHub) deliver(notification dto.NotificationResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.byUser[notification.UserID] {
		select {
		case sub.ch <- notification:
		default:
			observability.NotificationFailures().WithLabelValues("slow_subscriber").Inc()
		}
	}
}

// recentIDs remembers the last notification ids delivered from other nodes so a
// frame that arrives over both brokers reaches local streams once.
type recentIDs struct {
	mu    sync.Mutex
	seen  map[uint]struct{}
	order []uint
	limit int
}

func newRecentIDs(limit int) *recentIDs {
	return &recentIDs{seen: make(map[uint]struct{}, limit), limit: limit}
}

// observe reports whether id is new and records it.
func (r *recentIDs) observe(id uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	r.order = append(r.order, id)
	if len(r.order) > r.limit {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	return true
}

type relayBroker string

const (
	relayNone  relayBroker = ""
	relayNATS  relayBroker = "nats"
	relayRedis relayBroker = "redis"
)

// relayTarget picks the one broker a node publishes on. NATS wins when both are
// configured; nodes still consume from both so mixed deployments interoperate.
func (s *notificationService) relayTarget() relayBroker {
	switch {
	case s.nats != nil && s.natsSubject != "":
		return relayNATS
	case s.redis != nil && s.redisChannel != "":
		return relayRedis
	default:
		return relayNone
	}
}

// relay forwards a locally created notification to the other API nodes.
func (s *notificationService) relay(ctx context.Context, notification dto.NotificationResponse) error {
	target := s.relayTarget()
	if target == relayNone {
		return nil
	}

	payload, err := json.Marshal(fanoutEnvelope{
		Origin:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode fan-out envelope: %w", err)
	}

	if target == relayNATS {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				s.logger.Warn().Str("channel", s.redisChannel).Msg("redis notification channel closed")
				return
			}
			s.handleEvent([]byte(msg.Payload))
		}
	}
}

// consumeNATS uses a plain subscription, not a queue group: every node has to
// see every event to reach the streams it holds.
func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", s.natsSubject).Msg("nats notification subscription failed")
		return
	}

	context.AfterFunc(ctx, func() {
		if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Warn().Err(err).Msg("nats notification drain failed")
		}
	})
}

func (s *notificationService) handleEvent(payload []byte) {
	var envelope fanoutEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed fan-out envelope")
		return
	}
	if envelope.Origin == s.nodeID || envelope.Notification.UserID == 0 {
		return
	}
	if !s.remote.observe(envelope.Notification.ID) {
		return
	}
	s.hub.deliver(envelope.Notification)
}
