package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	UserID    uint   `json:"user_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=255"`
	Message   string `json:"message" validate:"omitempty,max=2000"`
	Type      string `json:"type" validate:"required,max=64"`
	RelatedID *uint  `json:"related_id"`
}

// NotificationListRequest pages through a recipient's notifications.
type NotificationListRequest struct {
	UnreadOnly bool `query:"unread"`
	Limit      int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int  `query:"offset" validate:"omitempty,min=0"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	RelatedID *uint     `json:"related_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationListResponse wraps a page of notifications with the unread total.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Title:     model.Title,
		Message:   model.Message,
		Type:      model.Type,
		IsRead:    model.IsRead,
		RelatedID: model.RelatedID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts notifications into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
