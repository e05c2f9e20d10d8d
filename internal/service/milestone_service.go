package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrMilestoneNotFound indicates the milestone does not exist.
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrMilestoneDocumentRequired indicates approval was attempted without evidence.
	ErrMilestoneDocumentRequired = errors.New("milestone has no attached document")
	// ErrMilestoneCompleted indicates evidence cannot change on a completed milestone.
	ErrMilestoneCompleted = errors.New("milestone is already completed")
	// ErrMilestoneLinkFailed indicates the document was stored but not linked yet.
	ErrMilestoneLinkFailed = errors.New("document stored but milestone link pending")
)

// MilestoneService implements milestone management and the completion workflow.
type MilestoneService interface {
	Create(ctx context.Context, actor Actor, projectID uint, payload dto.MilestoneCreateRequest) (dto.MilestoneResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.MilestoneUpdateRequest) (dto.MilestoneResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	ListByProject(ctx context.Context, actor Actor, projectID uint) ([]dto.MilestoneResponse, error)
	AttachDocument(ctx context.Context, actor Actor, id uint, name string, file *multipart.FileHeader, progress ProgressFunc) (dto.MilestoneResponse, error)
	Approve(ctx context.Context, actor Actor, id uint) (dto.MilestoneResponse, error)
	Revoke(ctx context.Context, actor Actor, id uint) (dto.MilestoneResponse, error)
}

// MilestoneServiceConfig carries the collaborators of the milestone service.
type MilestoneServiceConfig struct {
	Milestones  repository.MilestoneRepository
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

type milestoneService struct {
	milestones repository.MilestoneRepository
	guard      projectGuard
	intents    IntentService
	uploader   documentUploader
	notifier   Notifier
	activity   ActivityRecorder
	overview   OverviewInvalidator
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewMilestoneService constructs the milestone service.
func NewMilestoneService(cfg MilestoneServiceConfig, validate *validator.Validate, logger zerolog.Logger) MilestoneService {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}
	log := logger.With().Str("component", "milestone_service").Logger()

	return &milestoneService{
		milestones: cfg.Milestones,
		guard:      projectGuard{projects: cfg.Projects, teams: cfg.Teams},
		intents:    cfg.Intents,
		uploader: documentUploader{
			storage:   cfg.Storage,
			documents: cfg.Documents,
			intents:   cfg.Intents,
			maxBytes:  int64(maxMB) * 1024 * 1024,
			logger:    log,
		},
		notifier:  cfg.Notifier,
		activity:  cfg.Activity,
		overview:  cfg.Overview,
		validator: validate,
		logger:    log,
		now:       time.Now,
	}
}

func (s *milestoneService) Create(ctx context.Context, actor Actor, projectID uint, payload dto.MilestoneCreateRequest) (dto.MilestoneResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.MilestoneResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.MilestoneResponse{}, err
	}
	project, err := s.guard.review(ctx, actor, projectID)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	milestone := models.Milestone{
		ProjectID:   project.ID,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		DueDate:     payload.DueDate.UTC(),
	}
	if err := s.milestones.Create(ctx, &milestone); err != nil {
		return dto.MilestoneResponse{}, err
	}

	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "milestone.created", "milestone", milestone.ID, map[string]interface{}{
		"project_id": project.ID,
	})
	return dto.NewMilestoneResponse(milestone, s.now()), nil
}

func (s *milestoneService) Update(ctx context.Context, actor Actor, id uint, payload dto.MilestoneUpdateRequest) (dto.MilestoneResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.MilestoneResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.MilestoneResponse{}, err
	}
	milestone, err := s.load(ctx, id)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	if payload.Title != nil {
		milestone.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		milestone.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.DueDate != nil {
		milestone.DueDate = payload.DueDate.UTC()
	}
	if err := s.milestones.Update(ctx, &milestone, "title", "description", "due_date"); err != nil {
		return dto.MilestoneResponse{}, err
	}

	s.invalidate(ctx, milestone.ProjectID)
	audit(ctx, s.activity, s.logger, actor, "milestone.updated", "milestone", milestone.ID, nil)
	return dto.NewMilestoneResponse(milestone, s.now()), nil
}

func (s *milestoneService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.requireReviewer(); err != nil {
		return err
	}
	milestone, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.milestones.Delete(ctx, milestone.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMilestoneNotFound
		}
		return err
	}

	s.invalidate(ctx, milestone.ProjectID)
	audit(ctx, s.activity, s.logger, actor, "milestone.deleted", "milestone", milestone.ID, map[string]interface{}{
		"project_id": milestone.ProjectID,
	})
	return nil
}

func (s *milestoneService) ListByProject(ctx context.Context, actor Actor, projectID uint) ([]dto.MilestoneResponse, error) {
	project, err := s.guard.view(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.milestones.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewMilestoneResponseSlice(milestones, s.now()), nil
}

// AttachDocument uploads evidence and links it to the milestone. When the link write
// fails the stored document is kept and the intent stays pending so the sweep can
// finish the link.
func (s *milestoneService) AttachDocument(ctx context.Context, actor Actor, id uint, name string, file *multipart.FileHeader, progress ProgressFunc) (dto.MilestoneResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.MilestoneResponse{}, err
	}
	milestone, err := s.load(ctx, id)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}
	project, err := s.guard.contribute(ctx, actor, milestone.ProjectID)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}
	if project.IsLocked() {
		return dto.MilestoneResponse{}, ErrProjectLocked
	}
	if milestone.CompletedAt != nil {
		return dto.MilestoneResponse{}, ErrMilestoneCompleted
	}

	inspected, err := s.uploader.inspect(file)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	intent, err := s.intents.Begin(ctx, models.IntentMilestoneAttach, actor.ID, map[string]interface{}{
		payloadProjectID:   project.ID,
		payloadMilestoneID: milestone.ID,
	})
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	if strings.TrimSpace(name) == "" {
		name = milestone.Title
	}
	document, err := s.uploader.stage(ctx, intent, actor, project, name, inspected, progress)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	milestone.DocumentID = uintPtr(document.ID)
	milestone.Document = nil
	if err := s.milestones.Update(ctx, &milestone, "document_id"); err != nil {
		s.logger.Error().Err(err).
			Uint("milestone_id", milestone.ID).
			Uint("document_id", document.ID).
			Msg("milestone link failed, leaving intent for reconciliation")
		intent.LastError = err.Error()
		if annotateErr := s.intents.Annotate(ctx, intent, nil); annotateErr != nil {
			s.logger.Warn().Err(annotateErr).Uint("intent_id", intent.ID).Msg("failed to record link error on intent")
		}
		return dto.MilestoneResponse{}, fmt.Errorf("%w: %v", ErrMilestoneLinkFailed, err)
	}

	if err := s.intents.Complete(ctx, intent); err != nil {
		s.logger.Warn().Err(err).Uint("milestone_id", milestone.ID).Msg("attach finished but intent left open")
	}

	milestone.Document = &document
	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "milestone.document_attached", "milestone", milestone.ID, map[string]interface{}{
		"project_id":  project.ID,
		"document_id": document.ID,
	})
	return dto.NewMilestoneResponse(milestone, s.now()), nil
}

func (s *milestoneService) Approve(ctx context.Context, actor Actor, id uint) (dto.MilestoneResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.MilestoneResponse{}, err
	}
	milestone, err := s.load(ctx, id)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}
	if milestone.DocumentID == nil {
		return dto.MilestoneResponse{}, ErrMilestoneDocumentRequired
	}
	if err := lifecycle.MilestoneApproval(milestone); err != nil {
		return dto.MilestoneResponse{}, err
	}
	project, err := s.guard.load(ctx, milestone.ProjectID)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	now := s.now().UTC()
	milestone.CompletedAt = &now
	return s.save(ctx, actor, project, milestone, "milestone.approved", "Milestone approved",
		fmt.Sprintf(`Milestone "%s" of "%s" was approved.`, milestone.Title, project.Title))
}

func (s *milestoneService) Revoke(ctx context.Context, actor Actor, id uint) (dto.MilestoneResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.MilestoneResponse{}, err
	}
	milestone, err := s.load(ctx, id)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}
	if err := lifecycle.MilestoneRevocation(milestone); err != nil {
		return dto.MilestoneResponse{}, err
	}
	project, err := s.guard.load(ctx, milestone.ProjectID)
	if err != nil {
		return dto.MilestoneResponse{}, err
	}

	milestone.CompletedAt = nil
	return s.save(ctx, actor, project, milestone, "milestone.revoked", "Milestone approval revoked",
		fmt.Sprintf(`Approval of milestone "%s" of "%s" was revoked.`, milestone.Title, project.Title))
}

func (s *milestoneService) save(ctx context.Context, actor Actor, project models.Project, milestone models.Milestone, action, title, message string) (dto.MilestoneResponse, error) {
	document := milestone.Document
	milestone.Document = nil
	if err := s.milestones.Update(ctx, &milestone, "completed_at"); err != nil {
		return dto.MilestoneResponse{}, err
	}
	milestone.Document = document

	observability.WorkflowTransitions().WithLabelValues("milestone", string(milestone.State())).Inc()
	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:    project.StudentID,
		Title:     title,
		Message:   message,
		Type:      models.NotificationTypeMilestoneUpdate,
		RelatedID: uintPtr(milestone.ID),
	})
	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, action, "milestone", milestone.ID, map[string]interface{}{
		"project_id": project.ID,
	})
	return dto.NewMilestoneResponse(milestone, s.now()), nil
}

func (s *milestoneService) load(ctx context.Context, id uint) (models.Milestone, error) {
	milestone, err := s.milestones.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Milestone{}, ErrMilestoneNotFound
		}
		return models.Milestone{}, err
	}
	return milestone, nil
}

func (s *milestoneService) invalidate(ctx context.Context, projectID uint) {
	if s.overview != nil {
		s.overview.Invalidate(ctx, projectID)
	}
}
