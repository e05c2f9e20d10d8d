package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// TaskCreateRequest defines a task inside a project.
type TaskCreateRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// TaskUpdateRequest edits task content.
type TaskUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// TaskStatusRequest moves a task through its workflow.
type TaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo pending in_progress completed"`
}

// TaskListRequest filters tasks of a project.
type TaskListRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=todo pending in_progress completed"`
	Priority string `query:"priority" validate:"omitempty,oneof=low medium high"`
}

// TaskResponse is returned when viewing tasks.
type TaskResponse struct {
	ID          uint       `json:"id"`
	ProjectID   uint       `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedBy   uint       `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTaskResponse converts a task model into a DTO.
func NewTaskResponse(model models.Task) TaskResponse {
	return TaskResponse{
		ID:          model.ID,
		ProjectID:   model.ProjectID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		Priority:    string(model.Priority),
		Status:      string(model.Status),
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewTaskResponseSlice converts task models into DTOs.
func NewTaskResponseSlice(items []models.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewTaskResponse(item))
	}
	return responses
}
