package service

import (
	"context"
	"errors"
	"fmt"
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

// ErrTaskNotFound indicates the task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// TaskService manages project tasks.
type TaskService interface {
	Create(ctx context.Context, actor Actor, projectID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error)
	UpdateStatus(ctx context.Context, actor Actor, id uint, payload dto.TaskStatusRequest) (dto.TaskResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	ListByProject(ctx context.Context, actor Actor, projectID uint, req dto.TaskListRequest) ([]dto.TaskResponse, error)
}

type taskService struct {
	tasks     repository.TaskRepository
	guard     projectGuard
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(tasks repository.TaskRepository, projects repository.ProjectRepository, teams repository.TeamRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		tasks:     tasks,
		guard:     projectGuard{projects: projects, teams: teams},
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

// access resolves the project for reviewers or contributing students.
func (s *taskService) access(ctx context.Context, actor Actor, projectID uint) (models.Project, error) {
	if err := actor.authenticated(); err != nil {
		return models.Project{}, err
	}
	if actor.Role.IsReviewer() {
		return s.guard.review(ctx, actor, projectID)
	}
	return s.guard.contribute(ctx, actor, projectID)
}

func (s *taskService) Create(ctx context.Context, actor Actor, projectID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TaskResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}
	project, err := s.access(ctx, actor, projectID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	task := models.Task{
		ProjectID:   project.ID,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		DueDate:     normalizeDue(payload.DueDate),
		Priority:    models.TaskPriorityMedium,
		Status:      models.TaskStatusTodo,
		CreatedBy:   actor.ID,
	}
	if payload.Priority != "" {
		task.Priority = models.TaskPriority(payload.Priority)
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		return dto.TaskResponse{}, err
	}

	if actor.Role.IsReviewer() {
		notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
			UserID:    project.StudentID,
			Title:     "New task assigned",
			Message:   fmt.Sprintf(`Task "%s" was added to "%s".`, task.Title, project.Title),
			Type:      models.NotificationTypeTaskAssigned,
			RelatedID: uintPtr(task.ID),
		})
	}
	audit(ctx, s.activity, s.logger, actor, "task.created", "task", task.ID, map[string]interface{}{
		"project_id": project.ID,
	})
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Update(ctx context.Context, actor Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TaskResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	if task.CreatedBy != actor.ID && !actor.Role.IsReviewer() {
		return dto.TaskResponse{}, ErrForbidden
	}
	if _, err := s.access(ctx, actor, task.ProjectID); err != nil {
		return dto.TaskResponse{}, err
	}

	if payload.Title != nil {
		task.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		task.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.DueDate != nil {
		task.DueDate = normalizeDue(payload.DueDate)
	}
	if payload.Priority != nil {
		task.Priority = models.TaskPriority(*payload.Priority)
	}

	if err := s.tasks.Update(ctx, &task, "title", "description", "due_date", "priority"); err != nil {
		return dto.TaskResponse{}, err
	}
	audit(ctx, s.activity, s.logger, actor, "task.updated", "task", task.ID, nil)
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) UpdateStatus(ctx context.Context, actor Actor, id uint, payload dto.TaskStatusRequest) (dto.TaskResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TaskResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	if _, err := s.access(ctx, actor, task.ProjectID); err != nil {
		return dto.TaskResponse{}, err
	}

	target := models.ParseTaskStatus(payload.Status)
	if err := lifecycle.TaskTransition(task.Status, target); err != nil {
		return dto.TaskResponse{}, err
	}
	if task.Status == target {
		return dto.NewTaskResponse(task), nil
	}

	from := task.Status
	task.Status = target
	if err := s.tasks.Update(ctx, &task, "status"); err != nil {
		return dto.TaskResponse{}, err
	}

	observability.WorkflowTransitions().WithLabelValues("task", string(target)).Inc()
	audit(ctx, s.activity, s.logger, actor, "task.status_changed", "task", task.ID, map[string]interface{}{
		"from": string(from),
		"to":   string(target),
	})
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.authenticated(); err != nil {
		return err
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if task.CreatedBy != actor.ID && !actor.Role.IsReviewer() {
		return ErrForbidden
	}
	if _, err := s.access(ctx, actor, task.ProjectID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	audit(ctx, s.activity, s.logger, actor, "task.deleted", "task", task.ID, map[string]interface{}{
		"project_id": task.ProjectID,
	})
	return nil
}

func (s *taskService) ListByProject(ctx context.Context, actor Actor, projectID uint, req dto.TaskListRequest) ([]dto.TaskResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	project, err := s.guard.view(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	filter := repository.TaskFilter{ProjectID: &project.ID}
	if req.Status != "" {
		status := models.ParseTaskStatus(req.Status)
		filter.Status = &status
	}
	if req.Priority != "" {
		priority := models.TaskPriority(req.Priority)
		filter.Priority = &priority
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewTaskResponseSlice(tasks), nil
}

func (s *taskService) load(ctx context.Context, id uint) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func normalizeDue(due *time.Time) *time.Time {
	if due == nil || due.IsZero() {
		return nil
	}
	value := due.UTC()
	return &value
}
