package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

const (
	notificationBufferSize   = 16
	defaultNotificationLimit = 20
	remoteDedupWindow        = 1024
)

// ErrNotificationNotFound indicates the notification does not exist for the caller.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService persists notifications and fans them out to live subscribers.
type NotificationService interface {
	Notifier
	List(ctx context.Context, actor Actor, req dto.NotificationListRequest) (dto.NotificationListResponse, error)
	UnreadCount(ctx context.Context, actor Actor) (int64, error)
	MarkRead(ctx context.Context, actor Actor, id uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, actor Actor) (int64, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	hub          *subscriberHub
	remote       *recentIDs
	nodeID       string
}

// NewNotificationService constructs a notification service. redisClient and natsConn
// are optional; without them fan-out stays in-process.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		validator:    validate,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/projtrack-api/internal/service/notification"),
		sanitizer:    bluemonday.StrictPolicy(),
		hub:          newSubscriberHub(),
		remote:       newRecentIDs(remoteDedupWindow),
		nodeID:       uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	title := plainText(s.sanitizer, payload.Title)
	if title == "" {
		return dto.NotificationResponse{}, errors.New("notification title empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(payload.UserID)),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		UserID:    payload.UserID,
		Title:     title,
		Message:   plainText(s.sanitizer, payload.Message),
		Type:      payload.Type,
		RelatedID: payload.RelatedID,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist notification")
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	s.hub.deliver(response)
	if err := s.relay(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, actor Actor, req dto.NotificationListRequest) (dto.NotificationListResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.NotificationListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.NotificationListResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := s.repo.ListByUser(ctx, actor.ID, repository.NotificationFilter{
		UnreadOnly: req.UnreadOnly,
		Limit:      limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:  dto.NewNotificationResponseSlice(notifications),
		Unread: unread,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	if err := actor.authenticated(); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, actor.ID)
}

func (s *notificationService) MarkRead(ctx context.Context, actor Actor, id uint) (dto.NotificationResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.NotificationResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(actor.ID)),
		attribute.Int64("notification.id", int64(id)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	if err := actor.authenticated(); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, actor.ID)
}

// Subscribe registers a live stream for userID. The returned cancel func is idempotent
// and closes the channel.
func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	sub := s.hub.add(userID)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.hub.remove(userID, sub)
			observability.StreamClientsActive().Dec()
		})
	}
}
