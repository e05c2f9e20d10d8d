package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// ProjectHandler exposes the project lifecycle.
type ProjectHandler struct {
	projects service.ProjectService
	overview service.OverviewService
	logger   zerolog.Logger
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(projects service.ProjectService, overview service.OverviewService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		overview: overview,
		logger:   logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register binds the project routes.
func (h *ProjectHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/decision", middleware.RequireReviewer(), h.decide)
	router.Get("/:id/overview", h.getOverview)
}

func (h *ProjectHandler) create(c *fiber.Ctx) error {
	var payload dto.ProjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	project, err := h.projects.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create project")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project created", project)
}

func (h *ProjectHandler) list(c *fiber.Ctx) error {
	var req dto.ProjectListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.projects.List(requestContext(c), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list projects")
	}
	return utils.OK(c, result.Items, "projects retrieved", result.Pagination)
}

func (h *ProjectHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	project, err := h.projects.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "get project")
	}
	return utils.SendSuccess(c, "project retrieved", project)
}

func (h *ProjectHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.ProjectUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	project, err := h.projects.UpdateContent(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update project")
	}
	return utils.SendSuccess(c, "project updated", project)
}

func (h *ProjectHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.projects.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err, "delete project")
	}
	return utils.SendSuccess(c, "project deleted", nil)
}

func (h *ProjectHandler) submit(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	project, err := h.projects.SubmitForReview(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "submit project")
	}
	return utils.SendSuccess(c, "project submitted for review", project)
}

func (h *ProjectHandler) decide(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.ProjectDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	project, err := h.projects.Decide(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "record decision")
	}
	return utils.SendSuccess(c, "decision recorded", project)
}

func (h *ProjectHandler) getOverview(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	overview, err := h.overview.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load project overview")
	}
	return utils.SendSuccess(c, "project overview", overview)
}
