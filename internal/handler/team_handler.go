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

// TeamHandler exposes student teams and invitations.
type TeamHandler struct {
	teams  service.TeamService
	logger zerolog.Logger
}

// NewTeamHandler constructs a team handler.
func NewTeamHandler(teams service.TeamService, logger zerolog.Logger) *TeamHandler {
	return &TeamHandler{
		teams:  teams,
		logger: logger.With().Str("component", "team_handler").Logger(),
	}
}

// Register binds team and invite routes on the versioned API group.
func (h *TeamHandler) Register(router fiber.Router) {
	student := middleware.RequireRole(models.RoleStudent)

	router.Post("/teams", student, h.create)
	router.Get("/teams/mine", student, h.mine)
	router.Post("/teams/leave", student, h.leave)
	router.Get("/teams/:id", h.get)
	router.Post("/teams/:id/invites", h.invite)

	router.Get("/invites", student, h.listInvites)
	router.Post("/invites/:id/respond", student, h.respond)
}

func (h *TeamHandler) create(c *fiber.Ctx) error {
	var payload dto.TeamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	team, err := h.teams.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create team")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "team created", team)
}

func (h *TeamHandler) mine(c *fiber.Ctx) error {
	team, err := h.teams.Mine(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "load team")
	}
	return utils.SendSuccess(c, "team retrieved", team)
}

func (h *TeamHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	team, err := h.teams.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "get team")
	}
	return utils.SendSuccess(c, "team retrieved", team)
}

// invite is not role-gated here: the service refuses non-leaders before any row exists.
func (h *TeamHandler) invite(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.TeamInviteRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	invite, err := h.teams.Invite(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "invite team member")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "invite sent", invite)
}

func (h *TeamHandler) leave(c *fiber.Ctx) error {
	result, err := h.teams.Leave(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "leave team")
	}
	return utils.SendSuccess(c, "left team", result)
}

func (h *TeamHandler) listInvites(c *fiber.Ctx) error {
	invites, err := h.teams.ListInvites(requestContext(c), actorFromContext(c), c.Query("status"))
	if err != nil {
		return handleError(c, h.logger, err, "list invites")
	}
	return utils.SendSuccess(c, "invites retrieved", invites)
}

func (h *TeamHandler) respond(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.InviteRespondRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	invite, err := h.teams.Respond(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "respond to invite")
	}
	return utils.SendSuccess(c, "invite answered", invite)
}
