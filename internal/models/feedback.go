package models

import "time"

// Feedback is an append-only faculty comment on a project or one of its tasks.
type Feedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	FacultyID uint      `gorm:"not null;index" json:"faculty_id"`
	TaskID    *uint     `gorm:"index" json:"task_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Faculty   Profile   `gorm:"foreignKey:FacultyID" json:"faculty"`
}

// TableName keeps the singular table name.
func (Feedback) TableName() string {
	return "feedback"
}
