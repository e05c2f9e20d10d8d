package models

import "time"

// MilestoneState is derived from the milestone columns and never stored.
type MilestoneState string

const (
	MilestoneStateNotStarted      MilestoneState = "not_started"
	MilestoneStatePendingApproval MilestoneState = "pending_approval"
	MilestoneStateCompleted       MilestoneState = "completed"
)

// Milestone is a dated checkpoint of a project, completed by faculty approval.
type Milestone struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   uint       `gorm:"not null;index" json:"project_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     time.Time  `gorm:"not null" json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	DocumentID  *uint      `json:"document_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Document    *Document  `gorm:"constraint:OnDelete:SET NULL" json:"document,omitempty"`
}

// TableName keeps the milestone table name stable.
func (Milestone) TableName() string {
	return "project_milestones"
}

// State derives the workflow position from completed_at and document_id.
func (m Milestone) State() MilestoneState {
	switch {
	case m.CompletedAt != nil:
		return MilestoneStateCompleted
	case m.DocumentID != nil:
		return MilestoneStatePendingApproval
	default:
		return MilestoneStateNotStarted
	}
}

// IsOverdue is true while the milestone is incomplete and its due date has passed.
func (m Milestone) IsOverdue(reference time.Time) bool {
	return m.CompletedAt == nil && reference.After(m.DueDate)
}
