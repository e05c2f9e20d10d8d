package models

import "time"

// ReviewAssignmentStatus tracks whether an assigned reviewer has decided.
type ReviewAssignmentStatus string

const (
	ReviewAssignmentAssigned  ReviewAssignmentStatus = "assigned"
	ReviewAssignmentCompleted ReviewAssignmentStatus = "completed"
)

// FacultyReviewAssignment places a project in a faculty member's review queue.
type FacultyReviewAssignment struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	ProjectID   uint                   `gorm:"not null;index" json:"project_id"`
	FacultyID   uint                   `gorm:"not null;index" json:"faculty_id"`
	AssignedBy  uint                   `gorm:"not null" json:"assigned_by"`
	Status      ReviewAssignmentStatus `gorm:"size:16;not null;default:assigned" json:"status"`
	CompletedAt *time.Time             `json:"completed_at"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Project     Project                `gorm:"constraint:OnDelete:CASCADE" json:"project"`
}

// TableName keeps the historical table name.
func (FacultyReviewAssignment) TableName() string {
	return "faculty_review_assignments"
}
