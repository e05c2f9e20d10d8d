package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// StreamFrame is the envelope pushed to WebSocket subscribers.
type StreamFrame struct {
	Event string                    `json:"event"`
	Data  *dto.NotificationResponse `json:"data,omitempty"`
}

// NotificationHandler manages the recipient operations and live notification streams.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Post("/read-all", h.markAllRead)
	router.Patch("/:id/read", h.markRead)
	router.Get("/stream", h.stream)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		actor := actorFromContext(c)
		if actor.ID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
		}
		c.Locals("subscriber_id", actor.ID)
		return c.Next()
	})
	router.Get("/ws", websocket.New(h.handleSocket))
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	var req dto.NotificationListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list notifications")
	}
	return utils.SendSuccess(c, "notifications", result)
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "count notifications")
	}
	return utils.SendSuccess(c, "unread notifications", fiber.Map{"unread": count})
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	notification, err := h.service.MarkRead(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "mark notification read")
	}
	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "mark notifications read")
	}
	return utils.SendSuccess(c, "notifications updated", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	stream, cleanup := h.service.Subscribe(actor.ID)
	interval := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if err := writeKeepAlive(w); err != nil {
			return
		}
		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Uint("user_id", actor.ID).Msg("notification stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Uint("user_id", actor.ID).Msg("notification stream closed")
					return
				}
			}
		}
	})

	return nil
}

func (h *NotificationHandler) handleSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("subscriber_id").(uint)
	stream, cleanup := h.service.Subscribe(userID)
	defer cleanup()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	h.logger.Debug().Uint("user_id", userID).Msg("notification socket connected")
	for {
		select {
		case notification, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(StreamFrame{Event: "notification", Data: &notification}); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug().Uint("user_id", userID).Msg("notification socket disconnected")
			return
		}
	}
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "id: %d\nevent: notification\ndata: %s\n\n", notification.ID, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
