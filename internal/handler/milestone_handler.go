package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// MilestoneHandler exposes milestone management and the completion workflow.
type MilestoneHandler struct {
	milestones service.MilestoneService
	logger     zerolog.Logger
}

// NewMilestoneHandler constructs a milestone handler.
func NewMilestoneHandler(milestones service.MilestoneService, logger zerolog.Logger) *MilestoneHandler {
	return &MilestoneHandler{
		milestones: milestones,
		logger:     logger.With().Str("component", "milestone_handler").Logger(),
	}
}

// Register binds milestone routes on the versioned API group.
func (h *MilestoneHandler) Register(router fiber.Router) {
	reviewer := middleware.RequireReviewer()

	router.Get("/projects/:projectID/milestones", h.listByProject)
	router.Post("/projects/:projectID/milestones", reviewer, h.create)
	router.Patch("/milestones/:id", reviewer, h.update)
	router.Delete("/milestones/:id", reviewer, h.delete)
	router.Post("/milestones/:id/document", h.attachDocument)
	router.Post("/milestones/:id/approve", reviewer, h.approve)
	router.Post("/milestones/:id/revoke", reviewer, h.revoke)
}

func (h *MilestoneHandler) listByProject(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	milestones, err := h.milestones.ListByProject(requestContext(c), actorFromContext(c), projectID)
	if err != nil {
		return handleError(c, h.logger, err, "list milestones")
	}
	return utils.SendSuccess(c, "milestones retrieved", milestones)
}

func (h *MilestoneHandler) create(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.MilestoneCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	milestone, err := h.milestones.Create(requestContext(c), actorFromContext(c), projectID, payload)
	if err != nil {
		return handleError(c, h.logger, err, "create milestone")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "milestone created", milestone)
}

func (h *MilestoneHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.MilestoneUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	milestone, err := h.milestones.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update milestone")
	}
	return utils.SendSuccess(c, "milestone updated", milestone)
}

func (h *MilestoneHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.milestones.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err, "delete milestone")
	}
	return utils.SendSuccess(c, "milestone deleted", nil)
}

func (h *MilestoneHandler) attachDocument(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	logger := requestLogger(h.logger, c)
	progress := func(sent, total int64) {
		logger.Debug().Uint("milestone_id", id).Int64("sent", sent).Int64("total", total).Msg("milestone evidence upload progress")
	}

	milestone, err := h.milestones.AttachDocument(requestContext(c), actorFromContext(c), id, c.FormValue("name"), file, progress)
	if errors.Is(err, service.ErrMilestoneLinkFailed) {
		// stored but not linked; the reconciliation sweep finishes the link
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, service.ErrMilestoneLinkFailed.Error(), nil)
	}
	if err != nil {
		return handleError(c, h.logger, err, "attach milestone document")
	}
	return utils.SendSuccess(c, "milestone document attached", milestone)
}

func (h *MilestoneHandler) approve(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	milestone, err := h.milestones.Approve(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "approve milestone")
	}
	return utils.SendSuccess(c, "milestone approved", milestone)
}

func (h *MilestoneHandler) revoke(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	milestone, err := h.milestones.Revoke(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "revoke milestone approval")
	}
	return utils.SendSuccess(c, "milestone approval revoked", milestone)
}
