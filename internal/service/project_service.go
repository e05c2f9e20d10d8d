package service

import (
	"context"
	"errors"
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
	// ErrProjectLocked indicates the project is approved and no longer editable.
	ErrProjectLocked = errors.New("project is approved and locked")
	// ErrNotTeamMember indicates the student does not belong to the referenced team.
	ErrNotTeamMember = errors.New("student is not a member of the team")
)

// ProjectService implements the project lifecycle.
type ProjectService interface {
	Create(ctx context.Context, actor Actor, payload dto.ProjectCreateRequest) (dto.ProjectResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error)
	List(ctx context.Context, actor Actor, req dto.ProjectListRequest) (dto.ProjectListResponse, error)
	UpdateContent(ctx context.Context, actor Actor, id uint, payload dto.ProjectUpdateRequest) (dto.ProjectResponse, error)
	SubmitForReview(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error)
	Decide(ctx context.Context, actor Actor, id uint, payload dto.ProjectDecisionRequest) (dto.ProjectResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type projectService struct {
	projects  repository.ProjectRepository
	teams     repository.TeamRepository
	reviews   repository.ReviewAssignmentRepository
	guard     projectGuard
	eraser    documentEraser
	activity  ActivityRecorder
	overview  OverviewInvalidator
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// ProjectServiceConfig bundles the collaborators of the project service. Documents,
// Intents and Storage are used to remove stored files before a project is deleted.
type ProjectServiceConfig struct {
	Projects  repository.ProjectRepository
	Teams     repository.TeamRepository
	Reviews   repository.ReviewAssignmentRepository
	Documents repository.DocumentRepository
	Intents   IntentService
	Storage   FileStorage
	Activity  ActivityRecorder
	Overview  OverviewInvalidator
}

// NewProjectService constructs the project service.
func NewProjectService(cfg ProjectServiceConfig, validate *validator.Validate, logger zerolog.Logger) ProjectService {
	log := logger.With().Str("component", "project_service").Logger()
	return &projectService{
		projects: cfg.Projects,
		teams:    cfg.Teams,
		reviews:  cfg.Reviews,
		guard:    projectGuard{projects: cfg.Projects, teams: cfg.Teams},
		eraser: documentEraser{
			storage:   cfg.Storage,
			documents: cfg.Documents,
			intents:   cfg.Intents,
			logger:    log,
		},
		activity:  cfg.Activity,
		overview:  cfg.Overview,
		validator: validate,
		logger:    log,
		now:       time.Now,
	}
}

func (s *projectService) Create(ctx context.Context, actor Actor, payload dto.ProjectCreateRequest) (dto.ProjectResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.ProjectResponse{}, err
	}
	if actor.Role != models.RoleStudent {
		return dto.ProjectResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectResponse{}, err
	}

	if payload.TeamID != nil {
		member, err := s.teams.FindMembership(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ProjectResponse{}, ErrNotTeamMember
			}
			return dto.ProjectResponse{}, err
		}
		if member.TeamID != *payload.TeamID {
			return dto.ProjectResponse{}, ErrNotTeamMember
		}
	}

	project := models.Project{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		StudentID:   actor.ID,
		TeamID:      payload.TeamID,
		Status:      models.ProjectStatusPending,
	}
	if err := s.projects.Create(ctx, &project); err != nil {
		return dto.ProjectResponse{}, err
	}

	audit(ctx, s.activity, s.logger, actor, "project.created", "project", project.ID, map[string]interface{}{
		"title": project.Title,
	})
	return s.reload(ctx, project)
}

func (s *projectService) Get(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error) {
	project, err := s.guard.view(ctx, actor, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) List(ctx context.Context, actor Actor, req dto.ProjectListRequest) (dto.ProjectListResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.ProjectListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectListResponse{}, err
	}

	filter := repository.ProjectFilter{
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if req.Status != "" {
		status := models.ProjectStatus(req.Status)
		filter.Status = &status
	}
	if req.TeamID > 0 {
		filter.TeamID = &req.TeamID
	}

	if actor.Role == models.RoleStudent {
		filter.VisibleTo = &actor.ID
	} else if req.StudentID > 0 {
		filter.StudentID = &req.StudentID
	}

	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return dto.ProjectListResponse{}, err
	}

	return dto.ProjectListResponse{
		Items:      dto.NewProjectResponseSlice(projects),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *projectService) UpdateContent(ctx context.Context, actor Actor, id uint, payload dto.ProjectUpdateRequest) (dto.ProjectResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.ProjectResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectResponse{}, err
	}

	project, err := s.guard.contribute(ctx, actor, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	if project.IsLocked() {
		return dto.ProjectResponse{}, ErrProjectLocked
	}

	if payload.Title != nil {
		project.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		project.Description = strings.TrimSpace(*payload.Description)
	}

	if err := s.projects.Update(ctx, &project, "title", "description"); err != nil {
		return dto.ProjectResponse{}, err
	}

	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "project.updated", "project", project.ID, nil)
	return s.reload(ctx, project)
}

func (s *projectService) SubmitForReview(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error) {
	project, err := s.guard.contribute(ctx, actor, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	if err := lifecycle.SubmitForReview(project.Status); err != nil {
		return dto.ProjectResponse{}, err
	}
	return s.transition(ctx, actor, project, models.ProjectStatusInReview, "project.submitted")
}

func (s *projectService) Decide(ctx context.Context, actor Actor, id uint, payload dto.ProjectDecisionRequest) (dto.ProjectResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return dto.ProjectResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectResponse{}, err
	}

	project, err := s.guard.review(ctx, actor, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	decision := models.ProjectStatus(payload.Status)
	if err := lifecycle.ProjectDecision(project.Status, decision); err != nil {
		return dto.ProjectResponse{}, err
	}

	response, err := s.transition(ctx, actor, project, decision, "project.decided")
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	s.completeAssignment(ctx, project.ID, actor.ID)
	return response, nil
}

// transition writes an already validated status change. Status changes alone never
// notify; only document reviews, feedback, milestones and team events do.
func (s *projectService) transition(ctx context.Context, actor Actor, project models.Project, to models.ProjectStatus, action string) (dto.ProjectResponse, error) {
	from := project.Status
	project.Status = to
	if err := s.projects.Update(ctx, &project, "status"); err != nil {
		return dto.ProjectResponse{}, err
	}

	observability.WorkflowTransitions().WithLabelValues("project", string(to)).Inc()
	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, action, "project", project.ID, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	return s.reload(ctx, project)
}

func (s *projectService) completeAssignment(ctx context.Context, projectID, facultyID uint) {
	if s.reviews == nil {
		return
	}
	assignment, err := s.reviews.FindOpen(ctx, projectID, facultyID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("project_id", projectID).Msg("failed to load review assignment")
		}
		return
	}

	now := s.now().UTC()
	assignment.Status = models.ReviewAssignmentCompleted
	assignment.CompletedAt = &now
	if err := s.reviews.Update(ctx, &assignment); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to complete review assignment")
	}
}

func (s *projectService) Delete(ctx context.Context, actor Actor, id uint) error {
	project, err := s.guard.contribute(ctx, actor, id)
	if err != nil {
		return err
	}
	if project.StudentID != actor.ID {
		return ErrForbidden
	}
	if project.IsLocked() {
		return ErrProjectLocked
	}

	// Rows cascade with the project but blobs do not, so files go first.
	removed, err := s.eraser.eraseProject(ctx, actor.ID, project.ID)
	if err != nil {
		s.logger.Warn().Err(err).
			Uint("project_id", project.ID).
			Int("documents_removed", removed).
			Msg("project delete stopped while removing documents")
		s.invalidate(ctx, project.ID)
		return err
	}

	if err := s.projects.Delete(ctx, project.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return err
	}

	s.invalidate(ctx, project.ID)
	audit(ctx, s.activity, s.logger, actor, "project.deleted", "project", project.ID, map[string]interface{}{
		"title":     project.Title,
		"documents": removed,
	})
	return nil
}

func (s *projectService) reload(ctx context.Context, project models.Project) (dto.ProjectResponse, error) {
	fresh, err := s.projects.GetByID(ctx, project.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("project_id", project.ID).Msg("failed to re-read project")
		return dto.NewProjectResponse(project), nil
	}
	return dto.NewProjectResponse(fresh), nil
}

func (s *projectService) invalidate(ctx context.Context, projectID uint) {
	if s.overview != nil {
		s.overview.Invalidate(ctx, projectID)
	}
}
