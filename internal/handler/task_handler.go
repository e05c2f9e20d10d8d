package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// TaskHandler exposes project tasks and faculty feedback.
type TaskHandler struct {
	tasks    service.TaskService
	feedback service.FeedbackService
	logger   zerolog.Logger
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks service.TaskService, feedback service.FeedbackService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		feedback: feedback,
		logger:   logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register binds task and feedback routes on the versioned API group.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/projects/:projectID/tasks", h.list)
	router.Post("/projects/:projectID/tasks", h.create)
	router.Patch("/tasks/:id", h.update)
	router.Patch("/tasks/:id/status", h.updateStatus)
	router.Delete("/tasks/:id", h.delete)

	router.Get("/projects/:projectID/feedback", h.listFeedback)
	router.Post("/projects/:projectID/feedback", middleware.RequireReviewer(), h.createFeedback)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.TaskListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	tasks, err := h.tasks.ListByProject(requestContext(c), actorFromContext(c), projectID, req)
	if err != nil {
		return handleError(c, h.logger, err, "list tasks")
	}
	return utils.SendSuccess(c, "tasks retrieved", tasks)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	task, err := h.tasks.Create(requestContext(c), actorFromContext(c), projectID, payload)
	if err != nil {
		return handleError(c, h.logger, err, "create task")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.TaskUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	task, err := h.tasks.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update task")
	}
	return utils.SendSuccess(c, "task updated", task)
}

func (h *TaskHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.TaskStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	task, err := h.tasks.UpdateStatus(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update task status")
	}
	return utils.SendSuccess(c, "task status updated", task)
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.tasks.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err, "delete task")
	}
	return utils.SendSuccess(c, "task deleted", nil)
}

func (h *TaskHandler) listFeedback(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	taskID, err := parseOptionalUintQuery(c, "task_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.feedback.ListByProject(requestContext(c), actorFromContext(c), projectID, taskID)
	if err != nil {
		return handleError(c, h.logger, err, "list feedback")
	}
	return utils.SendSuccess(c, "feedback retrieved", entries)
}

func (h *TaskHandler) createFeedback(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.FeedbackCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	entry, err := h.feedback.Create(requestContext(c), actorFromContext(c), projectID, payload)
	if err != nil {
		return handleError(c, h.logger, err, "create feedback")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback recorded", entry)
}
