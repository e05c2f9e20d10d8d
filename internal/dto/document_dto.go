package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// DocumentUploadRequest describes the multipart fields accompanying a document upload.
type DocumentUploadRequest struct {
	ProjectID uint   `form:"project_id" validate:"required,gt=0"`
	Name      string `form:"name" validate:"omitempty,max=255"`
}

// DocumentReviewRequest is a faculty verdict on a document.
type DocumentReviewRequest struct {
	Status  string  `json:"status" validate:"required,oneof=approved rejected"`
	Remarks *string `json:"remarks" validate:"omitempty,max=4000"`
}

// DocumentResponse is returned to API clients when viewing documents.
type DocumentResponse struct {
	ID             uint       `json:"id"`
	ProjectID      uint       `json:"project_id"`
	Name           string     `json:"name"`
	FilePath       string     `json:"file_path"`
	FileURL        string     `json:"file_url"`
	FileType       string     `json:"file_type"`
	FileSize       int64      `json:"file_size"`
	UploadedBy     uint       `json:"uploaded_by"`
	Status         string     `json:"status"`
	FacultyRemarks *string    `json:"faculty_remarks"`
	ReviewedBy     *uint      `json:"reviewed_by"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewDocumentResponse converts a document model into a DTO.
func NewDocumentResponse(model models.Document) DocumentResponse {
	return DocumentResponse{
		ID:             model.ID,
		ProjectID:      model.ProjectID,
		Name:           model.Name,
		FilePath:       model.FilePath,
		FileURL:        model.FileURL,
		FileType:       model.FileType,
		FileSize:       model.FileSize,
		UploadedBy:     model.UploadedBy,
		Status:         string(model.Status),
		FacultyRemarks: model.FacultyRemarks,
		ReviewedBy:     model.ReviewedBy,
		ReviewedAt:     model.ReviewedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewDocumentResponseSlice converts document models into DTOs.
func NewDocumentResponseSlice(items []models.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewDocumentResponse(item))
	}
	return responses
}
