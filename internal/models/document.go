package models

import "time"

// DocumentStatus is the faculty verdict on an uploaded document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// Valid reports whether s is one of the three document states.
func (s DocumentStatus) Valid() bool {
	return s == DocumentStatusPending || s == DocumentStatusApproved || s == DocumentStatusRejected
}

// Document represents a file uploaded by a student for a project.
type Document struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ProjectID      uint           `gorm:"not null;index" json:"project_id"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	FilePath       string         `gorm:"size:512;not null;index" json:"file_path"`
	FileURL        string         `gorm:"size:1024" json:"file_url"`
	FileType       string         `gorm:"size:128" json:"file_type"`
	FileSize       int64          `json:"file_size"`
	UploadedBy     uint           `gorm:"not null" json:"uploaded_by"`
	Status         DocumentStatus `gorm:"size:32;not null;default:pending" json:"status"`
	FacultyRemarks *string        `gorm:"type:text" json:"faculty_remarks"`
	ReviewedBy     *uint          `json:"reviewed_by"`
	ReviewedAt     *time.Time     `json:"reviewed_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Project        Project        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsReviewed reports whether faculty have reached a verdict.
func (d Document) IsReviewed() bool {
	return d.Status == DocumentStatusApproved || d.Status == DocumentStatusRejected
}
