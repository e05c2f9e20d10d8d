// Package models holds the GORM entities of the project tracker.
package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Team{},
		&TeamMember{},
		&TeamInvite{},
		&Project{},
		&Document{},
		&Milestone{},
		&Task{},
		&Feedback{},
		&Notification{},
		&FacultyReviewAssignment{},
		&ActivityLog{},
		&WorkflowIntent{},
	}
}
