package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrReviewerNotFaculty indicates the assignee is not a faculty profile.
	ErrReviewerNotFaculty = errors.New("reviewer must be a faculty member")
	// ErrAssignmentExists indicates the faculty already has an open assignment for the project.
	ErrAssignmentExists = errors.New("review assignment already open")
)

// ReviewAssignmentService manages faculty review queues.
type ReviewAssignmentService interface {
	Assign(ctx context.Context, actor Actor, payload dto.ReviewAssignmentCreateRequest) (dto.ReviewAssignmentResponse, error)
	Queue(ctx context.Context, actor Actor, status string) ([]dto.ReviewAssignmentResponse, error)
}

type reviewAssignmentService struct {
	assignments repository.ReviewAssignmentRepository
	profiles    repository.ProfileRepository
	guard       projectGuard
	notifier    Notifier
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewReviewAssignmentService constructs the review assignment service.
func NewReviewAssignmentService(assignments repository.ReviewAssignmentRepository, profiles repository.ProfileRepository, projects repository.ProjectRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ReviewAssignmentService {
	return &reviewAssignmentService{
		assignments: assignments,
		profiles:    profiles,
		guard:       projectGuard{projects: projects},
		notifier:    notifier,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "review_assignment_service").Logger(),
	}
}

func (s *reviewAssignmentService) Assign(ctx context.Context, actor Actor, payload dto.ReviewAssignmentCreateRequest) (dto.ReviewAssignmentResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.ReviewAssignmentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewAssignmentResponse{}, err
	}

	project, err := s.guard.load(ctx, payload.ProjectID)
	if err != nil {
		return dto.ReviewAssignmentResponse{}, err
	}
	faculty, err := s.profiles.GetByID(ctx, payload.FacultyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewAssignmentResponse{}, ErrProfileNotFound
		}
		return dto.ReviewAssignmentResponse{}, err
	}
	if faculty.Role != models.RoleFaculty {
		return dto.ReviewAssignmentResponse{}, ErrReviewerNotFaculty
	}
	if _, err := s.assignments.FindOpen(ctx, project.ID, faculty.ID); err == nil {
		return dto.ReviewAssignmentResponse{}, ErrAssignmentExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ReviewAssignmentResponse{}, err
	}

	assignment := models.FacultyReviewAssignment{
		ProjectID:  project.ID,
		FacultyID:  faculty.ID,
		AssignedBy: actor.ID,
		Status:     models.ReviewAssignmentAssigned,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.ReviewAssignmentResponse{}, err
	}
	assignment.Project = project

	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:    faculty.ID,
		Title:     "Project assigned for review",
		Message:   fmt.Sprintf(`"%s" was added to your review queue.`, project.Title),
		Type:      models.NotificationTypeReviewAssigned,
		RelatedID: uintPtr(project.ID),
	})
	audit(ctx, s.activity, s.logger, actor, "review.assigned", "review_assignment", assignment.ID, map[string]interface{}{
		"project_id": project.ID,
		"faculty_id": faculty.ID,
	})
	return dto.NewReviewAssignmentResponse(assignment), nil
}

func (s *reviewAssignmentService) Queue(ctx context.Context, actor Actor, status string) ([]dto.ReviewAssignmentResponse, error) {
	if err := actor.authenticated(); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleFaculty {
		return nil, ErrForbidden
	}

	var filter *models.ReviewAssignmentStatus
	if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
		value := models.ReviewAssignmentStatus(trimmed)
		filter = &value
	}
	assignments, err := s.assignments.ListByFaculty(ctx, actor.ID, filter)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ReviewAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, dto.NewReviewAssignmentResponse(assignment))
	}
	return out, nil
}
