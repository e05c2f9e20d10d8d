package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// AdminHandler exposes audit logs, saga maintenance and review assignment.
type AdminHandler struct {
	activity   service.ActivityService
	intents    service.IntentService
	reviews    service.ReviewAssignmentService
	staleAfter time.Duration
	logger     zerolog.Logger
}

// NewAdminHandler constructs the handler. staleAfter is the default sweep threshold.
func NewAdminHandler(activity service.ActivityService, intents service.IntentService, reviews service.ReviewAssignmentService, staleAfter time.Duration, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		activity:   activity,
		intents:    intents,
		reviews:    reviews,
		staleAfter: staleAfter,
		logger:     logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches admin routes to the router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/activity", h.listActivity)
	router.Get("/intents", h.listIntents)
	router.Post("/intents/sweep", h.sweep)
	router.Post("/review-assignments", h.assign)
}

func (h *AdminHandler) listActivity(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	actorID, err := parseOptionalUintQuery(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor id")
	}

	entityID, err := parseOptionalUintQuery(c, "entity_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity id")
	}

	req := dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if actorID != nil {
		req.ActorID = *actorID
	}
	if entityID != nil {
		req.EntityID = *entityID
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "since must be an RFC3339 timestamp")
		}
		req.Since = &since
	}

	response, err := h.activity.List(requestContext(c), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list activity logs")
	}
	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

func (h *AdminHandler) listIntents(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit == 0 || limit > 500 {
		limit = 100
	}

	intents, err := h.intents.ListPending(requestContext(c), actorFromContext(c), limit)
	if err != nil {
		return handleError(c, h.logger, err, "list workflow intents")
	}
	return utils.SendSuccess(c, "pending workflow intents", intents)
}

func (h *AdminHandler) sweep(c *fiber.Ctx) error {
	olderThan := h.staleAfter
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid older_than duration")
		}
		olderThan = parsed
	}

	result, err := h.intents.Sweep(requestContext(c), actorFromContext(c), olderThan)
	if err != nil {
		return handleError(c, h.logger, err, "sweep workflow intents")
	}
	requestLogger(h.logger, c).Info().
		Int("scanned", result.Scanned).
		Int("completed", result.Completed).
		Int("rolled_back", result.RolledBack).
		Int("failed", result.Failed).
		Msg("manual intent sweep finished")
	return utils.SendSuccess(c, "sweep finished", result)
}

func (h *AdminHandler) assign(c *fiber.Ctx) error {
	var payload dto.ReviewAssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	assignment, err := h.reviews.Assign(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "assign reviewer")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reviewer assigned", assignment)
}
