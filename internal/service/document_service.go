package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrDocumentNotFound indicates the document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentReviewed indicates the document already carries a verdict.
	ErrDocumentReviewed = errors.New("document has already been reviewed")
)

// OverviewInvalidator drops cached project aggregates after a write.
type OverviewInvalidator interface {
	Invalidate(ctx context.Context, projectID uint)
}

// DocumentService implements the document upload and review workflow.
type DocumentService interface {
	Upload(ctx context.Context, actor Actor, payload dto.DocumentUploadRequest, file *multipart.FileHeader, progress ProgressFunc) (dto.DocumentResponse, error)
	Review(ctx context.Context, actor Actor, id uint, payload dto.DocumentReviewRequest) (dto.DocumentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Get(ctx context.Context, actor Actor, id uint) (dto.DocumentResponse, error)
	ListByProject(ctx context.Context, actor Actor, projectID uint) ([]dto.DocumentResponse, error)
}

// DocumentServiceConfig carries the collaborators of the document service.
type DocumentServiceConfig struct {
	Documents   repository.DocumentRepository
	Projects    repository.ProjectRepository
	Teams       repository.TeamRepository
	Intents     IntentService
	Storage     FileStorage
	Notifier    Notifier
	Activity    ActivityRecorder
	Overview    OverviewInvalidator
	MaxUploadMB int
}

type documentService struct {
	documents repository.DocumentRepository
	guard     projectGuard
	intents   IntentService
	storage   FileStorage
	uploader  documentUploader
	eraser    documentEraser
	notifier  Notifier
	activity  ActivityRecorder
	overview  OverviewInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewDocumentService constructs the document workflow service.
func NewDocumentService(cfg DocumentServiceConfig, validate *validator.Validate, logger zerolog.Logger) DocumentService {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}
	log := logger.With().Str("component", "document_service").Logger()

	return &documentService{
		documents: cfg.Documents,
		guard:     projectGuard{projects: cfg.Projects, teams: cfg.Teams},
		intents:   cfg.Intents,
		storage:   cfg.Storage,
		uploader: documentUploader{
			storage:   cfg.Storage,
			documents: cfg.Documents,
			intents:   cfg.Intents,
			maxBytes:  int64(maxMB) * 1024 * 1024,
			logger:    log,
		},
		eraser: documentEraser{
			storage:   cfg.Storage,
			documents: cfg.Documents,
			intents:   cfg.Intents,
			logger:    log,
		},
		notifier:  cfg.Notifier,
		activity:  cfg.Activity,
		overview:  cfg.Overview,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    log,
		tracer:    otel.Tracer("github.com/noah-isme/projtrack-api/internal/service/document"),
		now:       time.Now,
	}
}

func (s *documentService) Upload(ctx context.Context, actor Actor, payload dto.DocumentUploadRequest, file *multipart.FileHeader, progress ProgressFunc) (dto.DocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "documents.upload", trace.WithAttributes(
		attribute.Int64("document.project_id", int64(payload.ProjectID)),
		attribute.Int64("upload.max_bytes", s.uploader.maxBytes),
	))
	defer span.End()

	if err := actor.authenticated(); err != nil {
		return dto.DocumentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	project, err := s.guard.contribute(ctx, actor, payload.ProjectID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	if project.IsLocked() {
		return dto.DocumentResponse{}, ErrProjectLocked
	}

	inspected, err := s.uploader.inspect(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.detected_mime", inspected.mimeType),
		attribute.Int("upload.size_bytes", len(inspected.content)),
	)

	intent, err := s.intents.Begin(ctx, models.IntentDocumentUpload, actor.ID, map[string]interface{}{
		payloadProjectID: project.ID,
	})
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	document, err := s.uploader.stage(ctx, intent, actor, project, payload.Name, inspected, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return dto.DocumentResponse{}, err
	}

	if err := s.intents.Complete(ctx, intent); err != nil {
		s.logger.Warn().Err(err).Uint("document_id", document.ID).Msg("upload stored but intent left open")
	}

	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "document.uploaded", "document", document.ID, map[string]interface{}{
		"project_id": project.ID,
		"file_type":  document.FileType,
		"file_size":  document.FileSize,
	})
	span.SetStatus(codes.Ok, "stored")

	return dto.NewDocumentResponse(document), nil
}

func (s *documentService) Review(ctx context.Context, actor Actor, id uint, payload dto.DocumentReviewRequest) (dto.DocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "documents.review", trace.WithAttributes(
		attribute.Int64("document.id", int64(id)),
		attribute.String("document.verdict", payload.Status),
	))
	defer span.End()

	if err := actor.requireReviewer(); err != nil {
		return dto.DocumentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	document, err := s.load(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	project, err := s.guard.load(ctx, document.ProjectID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	verdict := models.DocumentStatus(payload.Status)
	if err := lifecycle.DocumentReview(document.Status, verdict); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition refused")
		return dto.DocumentResponse{}, err
	}

	previous := document.Status
	now := s.now().UTC()
	document.Status = verdict
	document.ReviewedBy = uintPtr(actor.ID)
	document.ReviewedAt = &now
	if payload.Remarks != nil {
		remarks := plainText(s.sanitizer, *payload.Remarks)
		if remarks == "" {
			document.FacultyRemarks = nil
		} else {
			document.FacultyRemarks = &remarks
		}
	}

	if err := s.documents.Update(ctx, &document); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist verdict")
		return dto.DocumentResponse{}, err
	}

	observability.WorkflowTransitions().WithLabelValues("document", string(verdict)).Inc()
	notify(ctx, s.notifier, s.logger, reviewNotification(project, document))
	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "document.reviewed", "document", document.ID, map[string]interface{}{
		"project_id": project.ID,
		"from":       string(previous),
		"to":         string(verdict),
	})

	return dto.NewDocumentResponse(document), nil
}

func reviewNotification(project models.Project, document models.Document) dto.NotificationCreateRequest {
	title := "Document rejected"
	if document.Status == models.DocumentStatusApproved {
		title = "Document approved"
	}
	message := fmt.Sprintf(`Your document "%s" for "%s" was %s.`, document.Name, project.Title, document.Status)
	if document.FacultyRemarks != nil {
		message += " Remarks: " + *document.FacultyRemarks
	}
	return dto.NotificationCreateRequest{
		UserID:    project.StudentID,
		Title:     title,
		Message:   clip(message, maxMessageRunes),
		Type:      models.NotificationTypeDocumentFeedback,
		RelatedID: uintPtr(document.ID),
	}
}

func (s *documentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.authenticated(); err != nil {
		return err
	}

	document, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	project, err := s.guard.load(ctx, document.ProjectID)
	if err != nil {
		return err
	}
	if document.UploadedBy != actor.ID && project.StudentID != actor.ID {
		return ErrForbidden
	}
	if document.IsReviewed() {
		return ErrDocumentReviewed
	}

	if err := s.eraser.erase(ctx, actor.ID, document); err != nil {
		return err
	}

	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "document.deleted", "document", document.ID, map[string]interface{}{
		"project_id": project.ID,
	})
	return nil
}

func (s *documentService) Get(ctx context.Context, actor Actor, id uint) (dto.DocumentResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.DocumentResponse{}, err
	}
	document, err := s.load(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	if _, err := s.guard.view(ctx, actor, document.ProjectID); err != nil {
		return dto.DocumentResponse{}, err
	}
	if document.FileURL == "" {
		document.FileURL = s.storage.PublicURL(document.FilePath)
	}
	return dto.NewDocumentResponse(document), nil
}

func (s *documentService) ListByProject(ctx context.Context, actor Actor, projectID uint) ([]dto.DocumentResponse, error) {
	project, err := s.guard.view(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	documents, err := s.documents.List(ctx, repository.DocumentFilter{ProjectID: &project.ID})
	if err != nil {
		return nil, err
	}
	return dto.NewDocumentResponseSlice(documents), nil
}

func (s *documentService) load(ctx context.Context, id uint) (models.Document, error) {
	document, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	return document, nil
}

func (s *documentService) invalidate(ctx context.Context, projectID uint) {
	if s.overview != nil {
		s.overview.Invalidate(ctx, projectID)
	}
}
