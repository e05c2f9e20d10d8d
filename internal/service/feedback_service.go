package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrFeedbackEmpty indicates the comment had no content after sanitization.
	ErrFeedbackEmpty = errors.New("feedback comment is empty")
	// ErrTaskProjectMismatch indicates the referenced task belongs to another project.
	ErrTaskProjectMismatch = errors.New("task does not belong to the project")
)

// FeedbackService records faculty feedback on projects and tasks.
type FeedbackService interface {
	Create(ctx context.Context, actor Actor, projectID uint, payload dto.FeedbackCreateRequest) (dto.FeedbackResponse, error)
	ListByProject(ctx context.Context, actor Actor, projectID uint, taskID *uint) ([]dto.FeedbackResponse, error)
}

type feedbackService struct {
	feedback  repository.FeedbackRepository
	tasks     repository.TaskRepository
	guard     projectGuard
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewFeedbackService constructs the feedback service.
func NewFeedbackService(feedback repository.FeedbackRepository, tasks repository.TaskRepository, projects repository.ProjectRepository, teams repository.TeamRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		feedback:  feedback,
		tasks:     tasks,
		guard:     projectGuard{projects: projects, teams: teams},
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "feedback_service").Logger(),
	}
}

func (s *feedbackService) Create(ctx context.Context, actor Actor, projectID uint, payload dto.FeedbackCreateRequest) (dto.FeedbackResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.FeedbackResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}
	project, err := s.guard.review(ctx, actor, projectID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	if payload.TaskID != nil {
		task, err := s.tasks.GetByID(ctx, *payload.TaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.FeedbackResponse{}, ErrTaskNotFound
			}
			return dto.FeedbackResponse{}, err
		}
		if task.ProjectID != project.ID {
			return dto.FeedbackResponse{}, ErrTaskProjectMismatch
		}
	}

	comment := strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment))
	if comment == "" {
		return dto.FeedbackResponse{}, ErrFeedbackEmpty
	}

	entry := models.Feedback{
		ProjectID: project.ID,
		FacultyID: actor.ID,
		TaskID:    payload.TaskID,
		Comment:   comment,
	}
	if err := s.feedback.Create(ctx, &entry); err != nil {
		return dto.FeedbackResponse{}, err
	}

	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:    project.StudentID,
		Title:     "New feedback",
		Message:   fmt.Sprintf(`New feedback on "%s".`, project.Title),
		Type:      models.NotificationTypeFeedback,
		RelatedID: uintPtr(project.ID),
	})
	audit(ctx, s.activity, s.logger, actor, "feedback.created", "feedback", entry.ID, map[string]interface{}{
		"project_id": project.ID,
	})
	return dto.NewFeedbackResponse(entry), nil
}

func (s *feedbackService) ListByProject(ctx context.Context, actor Actor, projectID uint, taskID *uint) ([]dto.FeedbackResponse, error) {
	project, err := s.guard.view(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	entries, err := s.feedback.ListByProject(ctx, project.ID, taskID)
	if err != nil {
		return nil, err
	}
	return dto.NewFeedbackResponseSlice(entries), nil
}
