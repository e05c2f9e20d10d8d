package models

import "time"

// ProjectStatus is the review position of a project.
type ProjectStatus string

const (
	ProjectStatusPending          ProjectStatus = "pending"
	ProjectStatusInReview         ProjectStatus = "in_review"
	ProjectStatusChangesRequested ProjectStatus = "changes_requested"
	ProjectStatusApproved         ProjectStatus = "approved"
)

// Valid reports whether s belongs to the project status vocabulary.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPending, ProjectStatusInReview, ProjectStatusChangesRequested, ProjectStatusApproved:
		return true
	}
	return false
}

// Project is a piece of student work tracked through faculty review.
type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	StudentID   uint          `gorm:"not null;index" json:"student_id"`
	TeamID      *uint         `gorm:"index" json:"team_id"`
	Status      ProjectStatus `gorm:"size:32;not null;default:pending;index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Student     Profile       `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Milestones  []Milestone   `gorm:"constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
}

// IsLocked reports whether student-side edits are closed.
func (p Project) IsLocked() bool {
	return p.Status == ProjectStatusApproved
}
