package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
)

// DocumentHandler exposes document upload and review.
type DocumentHandler struct {
	documents service.DocumentService
	logger    zerolog.Logger
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(documents service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With().Str("component", "document_handler").Logger(),
	}
}

// Register binds project-scoped and document routes on the versioned API group.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Get("/projects/:projectID/documents", h.listByProject)
	router.Post("/projects/:projectID/documents", h.upload)
	router.Get("/documents/:id", h.get)
	router.Patch("/documents/:id/review", middleware.RequireReviewer(), h.review)
	router.Delete("/documents/:id", h.delete)
}

func (h *DocumentHandler) upload(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	payload := dto.DocumentUploadRequest{ProjectID: projectID, Name: c.FormValue("name")}
	logger := requestLogger(h.logger, c)
	progress := func(sent, total int64) {
		logger.Debug().Uint("project_id", projectID).Int64("sent", sent).Int64("total", total).Msg("document upload progress")
	}

	document, err := h.documents.Upload(requestContext(c), actorFromContext(c), payload, file, progress)
	if err != nil {
		return handleError(c, h.logger, err, "upload document")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", document)
}

func (h *DocumentHandler) listByProject(c *fiber.Ctx) error {
	projectID, err := parseIDParam(c, "projectID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	documents, err := h.documents.ListByProject(requestContext(c), actorFromContext(c), projectID)
	if err != nil {
		return handleError(c, h.logger, err, "list documents")
	}
	return utils.SendSuccess(c, "documents retrieved", documents)
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	document, err := h.documents.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "get document")
	}
	return utils.SendSuccess(c, "document retrieved", document)
}

func (h *DocumentHandler) review(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.DocumentReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	document, err := h.documents.Review(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "review document")
	}
	return utils.SendSuccess(c, "document reviewed", document)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.documents.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err, "delete document")
	}
	return utils.SendSuccess(c, "document deleted", nil)
}
