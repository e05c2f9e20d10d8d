package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
)

func (f *fixture) createMilestone(t *testing.T, projectID uint, title string, due time.Time) dto.MilestoneResponse {
	t.Helper()
	milestone, err := f.milestones.Create(context.Background(), actorOf(f.faculty), projectID, dto.MilestoneCreateRequest{
		Title:   title,
		DueDate: due,
	})
	require.NoError(t, err)
	return milestone
}

func TestMilestoneAttachApproveRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Capstone")
	milestone := f.createMilestone(t, project.ID, "Proposal", time.Now().Add(72*time.Hour))
	require.Equal(t, string(models.MilestoneStateNotStarted), milestone.State)

	_, err := f.milestones.Approve(ctx, actorOf(f.faculty), milestone.ID)
	require.ErrorIs(t, err, ErrMilestoneDocumentRequired)

	attached, err := f.milestones.AttachDocument(ctx, actorOf(f.student), milestone.ID, "", fileHeader(t, "proposal.pdf", pdfContent(4096)), nil)
	require.NoError(t, err)
	require.Equal(t, string(models.MilestoneStatePendingApproval), attached.State)
	require.NotNil(t, attached.DocumentID)
	require.NotNil(t, attached.Document)
	require.Equal(t, "Proposal", attached.Document.Name)

	_, err = f.milestones.Approve(ctx, actorOf(f.student), milestone.ID)
	require.ErrorIs(t, err, ErrForbidden)

	approved, err := f.milestones.Approve(ctx, actorOf(f.faculty), milestone.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.MilestoneStateCompleted), approved.State)
	require.NotNil(t, approved.CompletedAt)

	_, err = f.milestones.Approve(ctx, actorOf(f.faculty), milestone.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.milestones.AttachDocument(ctx, actorOf(f.student), milestone.ID, "", fileHeader(t, "late.pdf", pdfContent(1024)), nil)
	require.ErrorIs(t, err, ErrMilestoneCompleted)

	revoked, err := f.milestones.Revoke(ctx, actorOf(f.faculty), milestone.ID)
	require.NoError(t, err)
	require.Nil(t, revoked.CompletedAt)
	require.NotNil(t, revoked.DocumentID)
	require.Equal(t, string(models.MilestoneStatePendingApproval), revoked.State)

	notifications := f.notificationsFor(t, f.student.ID)
	require.Len(t, notifications, 2)
	require.Equal(t, models.NotificationTypeMilestoneUpdate, notifications[0].Type)
	require.Equal(t, "Milestone approved", notifications[0].Title)
	require.Equal(t, "Milestone approval revoked", notifications[1].Title)

	intents := f.intentsOf(t, models.IntentMilestoneAttach)
	require.Len(t, intents, 1)
	require.Equal(t, models.IntentStateCompleted, intents[0].State)
}

func TestMilestoneAttachLinkFailureFinishedBySweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Embedded")
	milestone := f.createMilestone(t, project.ID, "Prototype", time.Now().Add(48*time.Hour))

	f.milestoneRepo.updateErr = errors.New("link failed")
	_, err := f.milestones.AttachDocument(ctx, actorOf(f.student), milestone.ID, "Board photo", fileHeader(t, "board.pdf", pdfContent(4096)), nil)
	require.ErrorIs(t, err, ErrMilestoneLinkFailed)

	docs, err := f.documents.ListByProject(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	intents := f.intentsOf(t, models.IntentMilestoneAttach)
	require.Len(t, intents, 1)
	require.Equal(t, models.IntentStatePending, intents[0].State)

	_, err = f.intents.Sweep(ctx, actorOf(f.faculty), time.Minute)
	require.ErrorIs(t, err, ErrForbidden)

	f.milestoneRepo.updateErr = nil
	f.ageIntents(t, time.Hour)
	summary, err := f.intents.Reconcile(ctx, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Completed)

	listed, err := f.milestones.ListByProject(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].DocumentID)
	require.Equal(t, docs[0].ID, *listed[0].DocumentID)
}

func TestSweepIgnoresFreshIntents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.intents.Begin(ctx, models.IntentDocumentUpload, f.student.ID, nil)
	require.NoError(t, err)

	summary, err := f.intents.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Zero(t, summary.Scanned)

	pending, err := f.intents.ListPending(ctx, actorOf(f.admin), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestSweepRetriesThenFailsWhenStorageStaysDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.intents.Begin(ctx, models.IntentDocumentUpload, f.student.ID, map[string]interface{}{
		payloadFilePath: "raw/project-1/orphan.pdf",
	})
	require.NoError(t, err)
	f.storage.removeErr = errors.New("storage offline")

	for attempt := 1; attempt < maxIntentAttempts; attempt++ {
		f.ageIntents(t, time.Hour)
		summary, err := f.intents.Reconcile(ctx, time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Retrying)
	}

	f.ageIntents(t, time.Hour)
	summary, err := f.intents.Reconcile(ctx, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	intents := f.intentsOf(t, models.IntentDocumentUpload)
	require.Equal(t, models.IntentStateFailed, intents[0].State)
	require.Equal(t, maxIntentAttempts, intents[0].Attempts)
	require.Contains(t, intents[0].LastError, "storage offline")
}

func TestOverviewProgressWithOneOfFourMilestonesCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Quantum")

	due := time.Now().Add(24 * time.Hour)
	var ids []uint
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		ids = append(ids, f.createMilestone(t, project.ID, title, due).ID)
	}
	_, err := f.milestones.AttachDocument(ctx, actorOf(f.student), ids[0], "", fileHeader(t, "one.pdf", pdfContent(1024)), nil)
	require.NoError(t, err)
	_, err = f.milestones.Approve(ctx, actorOf(f.faculty), ids[0])
	require.NoError(t, err)

	overview, err := f.overview.Get(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Equal(t, 25, overview.Progress)
	require.Equal(t, 4, overview.MilestonesTotal)
	require.Equal(t, 1, overview.MilestonesCompleted)
	require.Zero(t, overview.MilestonesOverdue)
	require.Equal(t, 1, overview.Documents.Pending)
}

func TestOverviewCachesAndInvalidates(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Cached")
	past := time.Now().Add(-time.Hour)
	f.createMilestone(t, project.ID, "Late", past)

	svc := NewOverviewService(f.projectRepo, f.teamRepo, f.milestoneRepo, f.documentRepo, redisClient, time.Minute, testLogger())
	first, err := svc.Get(ctx, actorOf(f.faculty), project.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.MilestonesOverdue)
	require.True(t, mini.Exists(overviewCacheKey(project.ID)))

	require.NoError(t, f.db.Create(&models.Milestone{ProjectID: project.ID, Title: "Direct", DueDate: past}).Error)
	cached, err := svc.Get(ctx, actorOf(f.faculty), project.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cached.MilestonesTotal)

	svc.Invalidate(ctx, project.ID)
	require.False(t, mini.Exists(overviewCacheKey(project.ID)))
	fresh, err := svc.Get(ctx, actorOf(f.faculty), project.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.MilestonesTotal)
	require.Equal(t, 2, fresh.MilestonesOverdue)

	outsider := f.createProfile(t, "outsider@example.edu", "Oscar Outsider", models.RoleStudent)
	_, err = svc.Get(ctx, actorOf(outsider), project.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestOverviewCacheRecomputesOverdueOnRead(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	f := newFixture(t)
	ctx := context.Background()
	project := f.createProject(t, f.student, "Deadline")
	due := time.Now().Add(30 * time.Second)
	f.createMilestone(t, project.ID, "Soon", due)

	svc := NewOverviewService(f.projectRepo, f.teamRepo, f.milestoneRepo, f.documentRepo, redisClient, time.Hour, testLogger()).(*overviewService)
	clock := due.Add(-30 * time.Second)
	svc.now = func() time.Time { return clock }

	before, err := svc.Get(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.Zero(t, before.MilestonesOverdue)
	require.False(t, before.Milestones[0].Overdue)
	require.True(t, mini.Exists(overviewCacheKey(project.ID)))

	clock = due.Add(time.Minute)
	after, err := svc.Get(ctx, actorOf(f.student), project.ID)
	require.NoError(t, err)
	require.True(t, mini.Exists(overviewCacheKey(project.ID)))
	require.Equal(t, 1, after.MilestonesOverdue)
	require.True(t, after.Milestones[0].Overdue)
	require.Equal(t, clock.UTC(), after.GeneratedAt)
}
