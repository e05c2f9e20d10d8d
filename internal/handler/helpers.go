package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

func actorFromContext(c *fiber.Ctx) service.Actor {
	actor := service.Actor{Role: models.ParseRole(userRoleFromContext(c))}
	switch id := c.Locals("user_id").(type) {
	case uint:
		actor.ID = id
	case int:
		if id > 0 {
			actor.ID = uint(id)
		}
	}
	return actor
}

func userRoleFromContext(c *fiber.Ctx) string {
	switch role := c.Locals("user_role").(type) {
	case string:
		return role
	case models.Role:
		return string(role)
	}
	return ""
}

// requestContext carries the correlation id into service calls.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Params(key)), 10, 64)
	if err != nil || value == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(value), nil
}

func parseOptionalUintQuery(c *fiber.Ctx, key string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return nil, errors.New("invalid " + key)
	}
	id := uint(value)
	return &id, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

var statusByError = []struct {
	err    error
	status int
}{
	{service.ErrNotAuthenticated, fiber.StatusUnauthorized},
	{service.ErrForbidden, fiber.StatusForbidden},
	{service.ErrNotTeamLeader, fiber.StatusForbidden},
	{service.ErrNotTeamMember, fiber.StatusForbidden},
	{service.ErrProjectNotFound, fiber.StatusNotFound},
	{service.ErrDocumentNotFound, fiber.StatusNotFound},
	{service.ErrMilestoneNotFound, fiber.StatusNotFound},
	{service.ErrTaskNotFound, fiber.StatusNotFound},
	{service.ErrTeamNotFound, fiber.StatusNotFound},
	{service.ErrNotInTeam, fiber.StatusNotFound},
	{service.ErrInviteNotFound, fiber.StatusNotFound},
	{service.ErrProfileNotFound, fiber.StatusNotFound},
	{service.ErrNotificationNotFound, fiber.StatusNotFound},
	{lifecycle.ErrInvalidTransition, fiber.StatusConflict},
	{service.ErrProjectLocked, fiber.StatusConflict},
	{service.ErrDocumentReviewed, fiber.StatusConflict},
	{service.ErrMilestoneDocumentRequired, fiber.StatusConflict},
	{service.ErrMilestoneCompleted, fiber.StatusConflict},
	{service.ErrAlreadyInTeam, fiber.StatusConflict},
	{service.ErrInviteExists, fiber.StatusConflict},
	{service.ErrTeamHasProjects, fiber.StatusConflict},
	{service.ErrProfileExists, fiber.StatusConflict},
	{service.ErrAssignmentExists, fiber.StatusConflict},
	{service.ErrInviteeNotStudent, fiber.StatusUnprocessableEntity},
	{service.ErrReviewerNotFaculty, fiber.StatusUnprocessableEntity},
	{service.ErrTaskProjectMismatch, fiber.StatusUnprocessableEntity},
	{service.ErrFeedbackEmpty, fiber.StatusBadRequest},
	{service.ErrInvalidRole, fiber.StatusBadRequest},
	{service.ErrDocumentFileRequired, fiber.StatusBadRequest},
	{service.ErrDocumentEmpty, fiber.StatusBadRequest},
	{service.ErrDocumentTooLarge, fiber.StatusRequestEntityTooLarge},
	{service.ErrDocumentTypeNotAllowed, fiber.StatusUnsupportedMediaType},
	{service.ErrStorageFailure, fiber.StatusBadGateway},
}

// handleError maps service errors onto the response envelope.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	if details := validationDetails(err); details != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
	}
	for _, candidate := range statusByError {
		if errors.Is(err, candidate.err) {
			return utils.SendError(c, candidate.status, err.Error())
		}
	}
	requestLogger(logger, c).Error().Err(err).Str("action", action).Msg("request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "failed to "+action)
}

func invalidBody(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
