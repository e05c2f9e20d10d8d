package models

import "time"

// Notification types emitted by the workflows. The column itself is free-form.
const (
	NotificationTypeFeedback         = "feedback"
	NotificationTypeStatusChange     = "status_change"
	NotificationTypeTaskAssigned     = "task_assigned"
	NotificationTypeDeadline         = "deadline"
	NotificationTypeDocumentFeedback = "document_feedback"
	NotificationTypeTeamInvite       = "team_invite"
	NotificationTypeTeamUpdate       = "team_update"
	NotificationTypeMilestoneUpdate  = "milestone_update"
	NotificationTypeReviewAssigned   = "review_assigned"
)

// Notification is a message addressed to exactly one user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Type      string    `gorm:"size:64" json:"type"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	RelatedID *uint     `json:"related_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
