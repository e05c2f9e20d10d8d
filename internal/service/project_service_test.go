package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
)

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Search engine")
	require.Equal(t, string(models.ProjectStatusPending), project.Status)
	require.NotNil(t, project.Student)

	_, err := f.projects.Decide(ctx, actorOf(f.faculty), project.ID, dto.ProjectDecisionRequest{Status: "approved"})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	submitted, err := f.projects.SubmitForReview(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ProjectStatusInReview), submitted.Status)

	_, err = f.projects.SubmitForReview(ctx, actorOf(f.student), project.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.projects.Decide(ctx, actorOf(f.student), project.ID, dto.ProjectDecisionRequest{Status: "approved"})
	require.ErrorIs(t, err, ErrForbidden)

	changes, err := f.projects.Decide(ctx, actorOf(f.faculty), project.ID, dto.ProjectDecisionRequest{Status: "changes_requested"})
	require.NoError(t, err)
	require.Equal(t, string(models.ProjectStatusChangesRequested), changes.Status)

	_, err = f.projects.SubmitForReview(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	approved, err := f.projects.Decide(ctx, actorOf(f.faculty), project.ID, dto.ProjectDecisionRequest{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, string(models.ProjectStatusApproved), approved.Status)

	_, err = f.projects.SubmitForReview(ctx, actorOf(f.student), project.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	_, err = f.projects.UpdateContent(ctx, actorOf(f.student), project.ID, dto.ProjectUpdateRequest{Title: strPtr("Renamed")})
	require.ErrorIs(t, err, ErrProjectLocked)
	require.ErrorIs(t, f.projects.Delete(ctx, actorOf(f.student), project.ID), ErrProjectLocked)

	require.Empty(t, f.notificationsFor(t, f.student.ID))

	var logs []models.ActivityLog
	require.NoError(t, f.db.Where("entity_type = ? AND entity_id = ?", "project", project.ID).Find(&logs).Error)
	require.Len(t, logs, 5)
}

func TestProjectDecisionCompletesReviewAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Assigned")

	assignment, err := f.reviews.Assign(ctx, actorOf(f.admin), dto.ReviewAssignmentCreateRequest{ProjectID: project.ID, FacultyID: f.faculty.ID})
	require.NoError(t, err)
	require.Equal(t, string(models.ReviewAssignmentAssigned), assignment.Status)

	_, err = f.reviews.Assign(ctx, actorOf(f.admin), dto.ReviewAssignmentCreateRequest{ProjectID: project.ID, FacultyID: f.faculty.ID})
	require.ErrorIs(t, err, ErrAssignmentExists)
	_, err = f.reviews.Assign(ctx, actorOf(f.admin), dto.ReviewAssignmentCreateRequest{ProjectID: project.ID, FacultyID: f.student.ID})
	require.ErrorIs(t, err, ErrReviewerNotFaculty)
	_, err = f.reviews.Assign(ctx, actorOf(f.faculty), dto.ReviewAssignmentCreateRequest{ProjectID: project.ID, FacultyID: f.faculty.ID})
	require.ErrorIs(t, err, ErrForbidden)

	notifications := f.notificationsFor(t, f.faculty.ID)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationTypeReviewAssigned, notifications[0].Type)

	_, err = f.projects.SubmitForReview(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	_, err = f.projects.Decide(ctx, actorOf(f.faculty), project.ID, dto.ProjectDecisionRequest{Status: "approved"})
	require.NoError(t, err)

	queue, err := f.reviews.Queue(ctx, actorOf(f.faculty), "")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, string(models.ReviewAssignmentCompleted), queue[0].Status)
	require.NotNil(t, queue[0].CompletedAt)
}

func TestProjectVisibilityAndTeamOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teammate := f.createProfile(t, "mate@example.edu", "Mia Mate", models.RoleStudent)
	outsider := f.createProfile(t, "out@example.edu", "Otto Out", models.RoleStudent)

	team, err := f.teams.Create(ctx, actorOf(f.student), dto.TeamCreateRequest{Name: "Rocket"})
	require.NoError(t, err)
	invite, err := f.teams.Invite(ctx, actorOf(f.student), team.ID, dto.TeamInviteRequest{Email: teammate.Email})
	require.NoError(t, err)
	_, err = f.teams.Respond(ctx, actorOf(teammate), invite.ID, dto.InviteRespondRequest{Status: "accepted"})
	require.NoError(t, err)

	_, err = f.projects.Create(ctx, actorOf(outsider), dto.ProjectCreateRequest{Title: "Stolen team", TeamID: &team.ID})
	require.ErrorIs(t, err, ErrNotTeamMember)

	project, err := f.projects.Create(ctx, actorOf(f.student), dto.ProjectCreateRequest{Title: "Team rocket", TeamID: &team.ID})
	require.NoError(t, err)
	solo := f.createProject(t, outsider, "Solo")

	_, err = f.projects.Get(ctx, actorOf(teammate), project.ID)
	require.NoError(t, err)
	_, err = f.projects.Get(ctx, actorOf(outsider), project.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.projects.Get(ctx, Actor{}, project.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	updated, err := f.projects.UpdateContent(ctx, actorOf(teammate), project.ID, dto.ProjectUpdateRequest{Description: strPtr("Shared work")})
	require.NoError(t, err)
	require.Equal(t, "Shared work", updated.Description)
	require.ErrorIs(t, f.projects.Delete(ctx, actorOf(teammate), project.ID), ErrForbidden)

	mine, err := f.projects.List(ctx, actorOf(teammate), dto.ProjectListRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	require.Equal(t, project.ID, mine.Items[0].ID)

	all, err := f.projects.List(ctx, actorOf(f.faculty), dto.ProjectListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), all.Pagination.TotalItems)

	byStudent, err := f.projects.List(ctx, actorOf(f.faculty), dto.ProjectListRequest{StudentID: outsider.ID})
	require.NoError(t, err)
	require.Len(t, byStudent.Items, 1)
	require.Equal(t, solo.ID, byStudent.Items[0].ID)

	require.NoError(t, f.projects.Delete(ctx, actorOf(outsider), solo.ID))
	_, err = f.projects.Get(ctx, actorOf(outsider), solo.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectDeleteRemovesStoredDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Disposable")

	first, err := f.documents.Upload(ctx, actorOf(f.student), dto.DocumentUploadRequest{ProjectID: project.ID},
		fileHeader(t, "draft.pdf", pdfContent(2048)), nil)
	require.NoError(t, err)
	_, err = f.documents.Upload(ctx, actorOf(f.student), dto.DocumentUploadRequest{ProjectID: project.ID},
		fileHeader(t, "notes.txt", textContent("meeting notes ")), nil)
	require.NoError(t, err)
	_, err = f.documents.Review(ctx, actorOf(f.faculty), first.ID, dto.DocumentReviewRequest{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, 2, f.storage.count())

	require.NoError(t, f.projects.Delete(ctx, actorOf(f.student), project.ID))
	require.Zero(t, f.storage.count())

	var documents int64
	require.NoError(t, f.db.Model(&models.Document{}).Count(&documents).Error)
	require.Zero(t, documents)
	for _, intent := range f.intentsOf(t, models.IntentDocumentDelete) {
		require.Equal(t, models.IntentStateCompleted, intent.State)
	}
	require.Len(t, f.intentsOf(t, models.IntentDocumentDelete), 2)
}

func TestProjectDeleteKeepsProjectWhenStorageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Sticky")
	_, err := f.documents.Upload(ctx, actorOf(f.student), dto.DocumentUploadRequest{ProjectID: project.ID},
		fileHeader(t, "draft.pdf", pdfContent(2048)), nil)
	require.NoError(t, err)

	f.storage.removeErr = errors.New("bucket offline")
	require.ErrorIs(t, f.projects.Delete(ctx, actorOf(f.student), project.ID), ErrStorageFailure)

	_, err = f.projects.Get(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.storage.count())
	intents := f.intentsOf(t, models.IntentDocumentDelete)
	require.Len(t, intents, 1)
	require.Equal(t, models.IntentStateRolledBack, intents[0].State)
}

func TestProjectCreateRequiresStudent(t *testing.T) {
	f := newFixture(t)
	_, err := f.projects.Create(context.Background(), actorOf(f.faculty), dto.ProjectCreateRequest{Title: "Faculty project"})
	require.ErrorIs(t, err, ErrForbidden)

	var count int64
	require.NoError(t, f.db.Model(&models.Project{}).Count(&count).Error)
	require.Zero(t, count)
}
