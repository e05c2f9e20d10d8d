package models

import (
	"strings"
	"time"
)

// TaskStatus tracks a task's execution.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// ParseTaskStatus accepts the legacy "pending" spelling for todo.
func ParseTaskStatus(value string) TaskStatus {
	switch v := TaskStatus(strings.ToLower(strings.TrimSpace(value))); v {
	case "pending":
		return TaskStatusTodo
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return v
	default:
		return ""
	}
}

// TaskPriority orders tasks within a project.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task is a unit of work inside a project.
type Task struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ProjectID   uint         `gorm:"not null;index" json:"project_id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	DueDate     *time.Time   `json:"due_date"`
	Priority    TaskPriority `gorm:"size:16;not null;default:medium" json:"priority"`
	Status      TaskStatus   `gorm:"size:32;not null;default:todo" json:"status"`
	CreatedBy   uint         `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Project     Project      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
