package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	Since      *time.Time
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// ReviewAssignmentCreateRequest places a project in a faculty queue.
type ReviewAssignmentCreateRequest struct {
	ProjectID uint `json:"project_id" validate:"required,gt=0"`
	FacultyID uint `json:"faculty_id" validate:"required,gt=0"`
}

// ReviewAssignmentResponse serializes a review assignment.
type ReviewAssignmentResponse struct {
	ID          uint             `json:"id"`
	ProjectID   uint             `json:"project_id"`
	FacultyID   uint             `json:"faculty_id"`
	AssignedBy  uint             `json:"assigned_by"`
	Status      string           `json:"status"`
	CompletedAt *time.Time       `json:"completed_at"`
	Project     *ProjectResponse `json:"project,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IntentResponse serializes a workflow intent.
type IntentResponse struct {
	ID        uint                   `json:"id"`
	Kind      string                 `json:"kind"`
	State     string                 `json:"state"`
	ActorID   uint                   `json:"actor_id"`
	Payload   map[string]interface{} `json:"payload"`
	LastError string                 `json:"last_error,omitempty"`
	Attempts  int                    `json:"attempts"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SweepResponse summarizes a reconciliation pass.
type SweepResponse struct {
	Scanned    int `json:"scanned"`
	Completed  int `json:"completed"`
	RolledBack int `json:"rolled_back"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}

// NewReviewAssignmentResponse converts a review assignment into a DTO.
func NewReviewAssignmentResponse(model models.FacultyReviewAssignment) ReviewAssignmentResponse {
	response := ReviewAssignmentResponse{
		ID:          model.ID,
		ProjectID:   model.ProjectID,
		FacultyID:   model.FacultyID,
		AssignedBy:  model.AssignedBy,
		Status:      string(model.Status),
		CompletedAt: model.CompletedAt,
		CreatedAt:   model.CreatedAt,
	}
	if model.Project.ID != 0 {
		project := NewProjectResponse(model.Project)
		response.Project = &project
	}
	return response
}

// NewIntentResponse converts a workflow intent into a DTO.
func NewIntentResponse(model models.WorkflowIntent) IntentResponse {
	return IntentResponse{
		ID:        model.ID,
		Kind:      string(model.Kind),
		State:     string(model.State),
		ActorID:   model.ActorID,
		Payload:   metadataFromJSON(model.Payload),
		LastError: model.LastError,
		Attempts:  model.Attempts,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for key, value := range data {
		result[key] = value
	}
	return result
}
