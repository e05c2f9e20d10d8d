package models

import (
	"time"

	"gorm.io/datatypes"
)

// IntentKind names a multi-step workflow tracked by a WorkflowIntent.
type IntentKind string

const (
	IntentDocumentUpload  IntentKind = "document_upload"
	IntentMilestoneAttach IntentKind = "milestone_attach"
	IntentDocumentDelete  IntentKind = "document_delete"
)

// IntentState is the lifecycle of a workflow intent.
type IntentState string

const (
	IntentStatePending    IntentState = "pending"
	IntentStateCompleted  IntentState = "completed"
	IntentStateRolledBack IntentState = "rolled_back"
	IntentStateFailed     IntentState = "failed"
)

// WorkflowIntent is written before the first side effect of a multi-step workflow
// and closed after the last one. Pending rows older than the sweep threshold are
// picked up by the reconciler.
type WorkflowIntent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Kind      IntentKind        `gorm:"size:32;not null;index" json:"kind"`
	State     IntentState       `gorm:"size:16;not null;index" json:"state"`
	ActorID   uint              `gorm:"not null" json:"actor_id"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	LastError string            `gorm:"type:text" json:"last_error"`
	Attempts  int               `gorm:"not null;default:0" json:"attempts"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
