package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ProjectCreateRequest is submitted by a student starting a project.
type ProjectCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	TeamID      *uint  `json:"team_id" validate:"omitempty,gt=0"`
}

// ProjectUpdateRequest edits project content.
type ProjectUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// ProjectDecisionRequest carries a faculty decision on a project in review.
type ProjectDecisionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved changes_requested"`
}

// ProjectListRequest describes query filters for listing projects.
type ProjectListRequest struct {
	Status    string `query:"status" validate:"omitempty,oneof=pending in_review changes_requested approved"`
	StudentID uint   `query:"student_id"`
	TeamID    uint   `query:"team_id"`
	Search    string `query:"search" validate:"omitempty,max=128"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ProjectResponse is returned when viewing a project.
type ProjectResponse struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	StudentID   uint         `json:"student_id"`
	TeamID      *uint        `json:"team_id"`
	Status      string       `json:"status"`
	Student     *ProfileLite `json:"student,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ProjectListResponse wraps a page of projects.
type ProjectListResponse struct {
	Items      []ProjectResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// DocumentSummary counts a project's documents per review status.
type DocumentSummary struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ProjectOverviewResponse aggregates progress for a project.
type ProjectOverviewResponse struct {
	Project             ProjectResponse     `json:"project"`
	Progress            int                 `json:"progress"`
	MilestonesTotal     int                 `json:"milestones_total"`
	MilestonesCompleted int                 `json:"milestones_completed"`
	MilestonesOverdue   int                 `json:"milestones_overdue"`
	Milestones          []MilestoneResponse `json:"milestones"`
	Documents           DocumentSummary     `json:"documents"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// NewProjectResponse converts a project model into a DTO.
func NewProjectResponse(model models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		StudentID:   model.StudentID,
		TeamID:      model.TeamID,
		Status:      string(model.Status),
		Student:     newProfileLite(model.Student),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewProjectResponseSlice converts project models into DTOs.
func NewProjectResponseSlice(items []models.Project) []ProjectResponse {
	responses := make([]ProjectResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewProjectResponse(item))
	}
	return responses
}
