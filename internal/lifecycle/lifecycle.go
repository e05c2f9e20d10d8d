// Package lifecycle holds the status vocabularies and transition allow-lists of the
// review workflows. Functions here are pure; persistence and authorization live in
// the service layer.
package lifecycle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a refused status change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func refuse(entity string, from, to string) error {
	return &TransitionError{Entity: entity, From: from, To: to}
}

var projectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.ProjectStatusPending:          {models.ProjectStatusInReview},
	models.ProjectStatusChangesRequested: {models.ProjectStatusInReview},
	models.ProjectStatusInReview:         {models.ProjectStatusApproved, models.ProjectStatusChangesRequested},
}

// ProjectTransition validates a project status change.
func ProjectTransition(from, to models.ProjectStatus) error {
	if !to.Valid() {
		return refuse("project", string(from), string(to))
	}
	for _, allowed := range projectTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return refuse("project", string(from), string(to))
}

// SubmitForReview validates the student-initiated transition into in_review.
func SubmitForReview(from models.ProjectStatus) error {
	return ProjectTransition(from, models.ProjectStatusInReview)
}

// ProjectDecision validates a faculty decision on a project under review.
func ProjectDecision(from, decision models.ProjectStatus) error {
	if decision != models.ProjectStatusApproved && decision != models.ProjectStatusChangesRequested {
		return refuse("project", string(from), string(decision))
	}
	return ProjectTransition(from, decision)
}

// DocumentReview validates a faculty verdict. Re-issuing the current verdict is
// allowed so remarks can be amended; flipping a verdict is not.
func DocumentReview(from, to models.DocumentStatus) error {
	if to != models.DocumentStatusApproved && to != models.DocumentStatusRejected {
		return refuse("document", string(from), string(to))
	}
	if from == models.DocumentStatusPending || from == to {
		return nil
	}
	return refuse("document", string(from), string(to))
}

var taskTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusTodo:       {models.TaskStatusInProgress, models.TaskStatusCompleted},
	models.TaskStatusInProgress: {models.TaskStatusTodo, models.TaskStatusCompleted},
	models.TaskStatusCompleted:  {models.TaskStatusInProgress},
}

// TaskTransition validates a task status change. Setting the current value is a no-op.
func TaskTransition(from, to models.TaskStatus) error {
	if from == to && to != "" {
		return nil
	}
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return refuse("task", string(from), string(to))
}

// InviteResponse validates an invitee's answer.
func InviteResponse(from, to models.InviteStatus) error {
	if from != models.InviteStatusPending {
		return refuse("invite", string(from), string(to))
	}
	if to != models.InviteStatusAccepted && to != models.InviteStatusRejected {
		return refuse("invite", string(from), string(to))
	}
	return nil
}

// MilestoneApproval validates faculty approval of a milestone.
func MilestoneApproval(m models.Milestone) error {
	switch m.State() {
	case models.MilestoneStatePendingApproval:
		return nil
	default:
		return refuse("milestone", string(m.State()), string(models.MilestoneStateCompleted))
	}
}

// MilestoneRevocation validates clearing a milestone's completion.
func MilestoneRevocation(m models.Milestone) error {
	if m.CompletedAt == nil {
		return refuse("milestone", string(m.State()), string(models.MilestoneStatePendingApproval))
	}
	return nil
}

// Progress returns the rounded percentage of completed milestones, 0 when there are none.
func Progress(milestones []models.Milestone) int {
	if len(milestones) == 0 {
		return 0
	}
	completed := 0
	for _, m := range milestones {
		if m.CompletedAt != nil {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(milestones))))
}

// CountOverdue counts milestones that are overdue at the reference instant.
func CountOverdue(milestones []models.Milestone, reference time.Time) int {
	n := 0
	for _, m := range milestones {
		if m.IsOverdue(reference) {
			n++
		}
	}
	return n
}
