package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// ProfileHandler exposes profiles and the faculty review queue.
type ProfileHandler struct {
	profiles service.ProfileService
	reviews  service.ReviewAssignmentService
	logger   zerolog.Logger
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(profiles service.ProfileService, reviews service.ReviewAssignmentService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		reviews:  reviews,
		logger:   logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register binds profile routes on the versioned API group.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("/profiles/me", h.me)
	router.Get("/profiles", h.list)
	router.Get("/profiles/:id", h.get)
	router.Post("/profiles", middleware.RequireRole(models.RoleAdmin), h.create)

	router.Get("/reviews/queue", middleware.RequireRole(models.RoleFaculty), h.queue)
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	profile, err := h.profiles.Me(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "load profile")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) list(c *fiber.Ctx) error {
	profiles, err := h.profiles.List(requestContext(c), actorFromContext(c), c.Query("role"))
	if err != nil {
		return handleError(c, h.logger, err, "list profiles")
	}
	return utils.SendSuccess(c, "profiles retrieved", profiles)
}

func (h *ProfileHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	profile, err := h.profiles.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "get profile")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) create(c *fiber.Ctx) error {
	var payload dto.ProfileCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	profile, err := h.profiles.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create profile")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "profile created", profile)
}

func (h *ProfileHandler) queue(c *fiber.Ctx) error {
	assignments, err := h.reviews.Queue(requestContext(c), actorFromContext(c), c.Query("status"))
	if err != nil {
		return handleError(c, h.logger, err, "load review queue")
	}
	return utils.SendSuccess(c, "review queue", assignments)
}
