package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	removeErr error
	removed   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return StoredFile{}, m.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return StoredFile{}, err
	}
	path := "raw/" + name
	m.objects[path] = data
	return StoredFile{Path: path, URL: m.PublicURL(path), Size: int64(len(data))}, nil
}

func (m *memoryStorage) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.objects, path)
	m.removed = append(m.removed, path)
	return nil
}

func (m *memoryStorage) PublicURL(path string) string {
	return "https://files.test/" + path
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type flakyDocumentRepository struct {
	repository.DocumentRepository
	createErr error
	deleteErr error
}

func (r *flakyDocumentRepository) Create(ctx context.Context, document *models.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.DocumentRepository.Create(ctx, document)
}

func (r *flakyDocumentRepository) Delete(ctx context.Context, id uint) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.DocumentRepository.Delete(ctx, id)
}

type flakyMilestoneRepository struct {
	repository.MilestoneRepository
	updateErr error
}

func (r *flakyMilestoneRepository) Update(ctx context.Context, milestone *models.Milestone, columns ...string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.MilestoneRepository.Update(ctx, milestone, columns...)
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, errors.New("notification store offline")
}

type fixture struct {
	db      *gorm.DB
	storage *memoryStorage

	documentRepo  *flakyDocumentRepository
	milestoneRepo *flakyMilestoneRepository
	projectRepo   repository.ProjectRepository
	teamRepo      repository.TeamRepository
	profileRepo   repository.ProfileRepository
	intentRepo    repository.IntentRepository

	notifications NotificationService
	activity      ActivityService
	intents       IntentService
	projects      ProjectService
	documents     DocumentService
	milestones    MilestoneService
	overview      OverviewService
	tasks         TaskService
	feedback      FeedbackService
	teams         TeamService
	reviews       ReviewAssignmentService
	profiles      ProfileService

	student models.Profile
	faculty models.Profile
	admin   models.Profile
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithNotifier(t, nil)
}

func newFixtureWithNotifier(t *testing.T, notifier Notifier) *fixture {
	t.Helper()

	db := setupTestDB(t)
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	f := &fixture{
		db:            db,
		storage:       newMemoryStorage(),
		documentRepo:  &flakyDocumentRepository{DocumentRepository: repository.NewDocumentRepository(db)},
		milestoneRepo: &flakyMilestoneRepository{MilestoneRepository: repository.NewMilestoneRepository(db)},
		projectRepo:   repository.NewProjectRepository(db),
		teamRepo:      repository.NewTeamRepository(db),
		profileRepo:   repository.NewProfileRepository(db),
		intentRepo:    repository.NewIntentRepository(db),
	}

	f.notifications = NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	if notifier == nil {
		notifier = f.notifications
	}
	f.activity = NewActivityService(repository.NewActivityLogRepository(db), nil, logger)
	f.intents = NewIntentService(f.intentRepo, f.documentRepo, f.milestoneRepo, f.storage, logger)
	f.overview = NewOverviewService(f.projectRepo, f.teamRepo, f.milestoneRepo, f.documentRepo, nil, 0, logger)
	reviewRepo := repository.NewReviewAssignmentRepository(db)
	f.projects = NewProjectService(ProjectServiceConfig{
		Projects:  f.projectRepo,
		Teams:     f.teamRepo,
		Reviews:   reviewRepo,
		Documents: f.documentRepo,
		Intents:   f.intents,
		Storage:   f.storage,
		Activity:  f.activity,
		Overview:  f.overview,
	}, validate, logger)
	f.documents = NewDocumentService(DocumentServiceConfig{
		Documents: f.documentRepo,
		Projects:  f.projectRepo,
		Teams:     f.teamRepo,
		Intents:   f.intents,
		Storage:   f.storage,
		Notifier:  notifier,
		Activity:  f.activity,
		Overview:  f.overview,
	}, validate, logger)
	f.milestones = NewMilestoneService(MilestoneServiceConfig{
		Milestones: f.milestoneRepo,
		Documents:  f.documentRepo,
		Projects:   f.projectRepo,
		Teams:      f.teamRepo,
		Intents:    f.intents,
		Storage:    f.storage,
		Notifier:   notifier,
		Activity:   f.activity,
		Overview:   f.overview,
	}, validate, logger)
	taskRepo := repository.NewTaskRepository(db)
	f.tasks = NewTaskService(taskRepo, f.projectRepo, f.teamRepo, notifier, f.activity, validate, logger)
	f.feedback = NewFeedbackService(repository.NewFeedbackRepository(db), taskRepo, f.projectRepo, f.teamRepo, notifier, f.activity, validate, logger)
	f.teams = NewTeamService(f.teamRepo, f.profileRepo, f.projectRepo, notifier, f.activity, validate, logger)
	f.reviews = NewReviewAssignmentService(reviewRepo, f.profileRepo, f.projectRepo, notifier, f.activity, validate, logger)
	f.profiles = NewProfileService(f.profileRepo, f.activity, validate, logger)

	f.student = f.createProfile(t, "student@example.edu", "Sam Student", models.RoleStudent)
	f.faculty = f.createProfile(t, "faculty@example.edu", "Fay Faculty", models.RoleFaculty)
	f.admin = f.createProfile(t, "admin@example.edu", "Ada Admin", models.RoleAdmin)
	return f
}

func (f *fixture) createProfile(t *testing.T, email, name string, role models.Role) models.Profile {
	t.Helper()
	profile := models.Profile{Email: email, Name: name, Role: role}
	require.NoError(t, f.profileRepo.Create(context.Background(), &profile))
	return profile
}

func actorOf(profile models.Profile) Actor {
	return Actor{ID: profile.ID, Role: profile.Role}
}

func (f *fixture) createProject(t *testing.T, owner models.Profile, title string) dto.ProjectResponse {
	t.Helper()
	project, err := f.projects.Create(context.Background(), actorOf(owner), dto.ProjectCreateRequest{Title: title})
	require.NoError(t, err)
	return project
}

func (f *fixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var items []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error)
	return items
}

func (f *fixture) intentsOf(t *testing.T, kind models.IntentKind) []models.WorkflowIntent {
	t.Helper()
	var items []models.WorkflowIntent
	require.NoError(t, f.db.Where("kind = ?", kind).Order("id ASC").Find(&items).Error)
	return items
}

// ageIntents pushes every intent's updated_at into the past so a sweep treats it as stale.
func (f *fixture) ageIntents(t *testing.T, by time.Duration) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.WorkflowIntent{}).
		Where("1 = 1").
		UpdateColumn("updated_at", time.Now().Add(-by)).Error)
}

func pdfContent(size int) []byte {
	header := []byte("%PDF-1.4\n")
	if size < len(header) {
		size = len(header)
	}
	content := make([]byte, size)
	copy(content, header)
	for i := len(header); i < size; i++ {
		content[i] = 'a' + byte(i%26)
	}
	return content
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func strPtr(v string) *string {
	return &v
}

func textContent(s string) []byte {
	return []byte(strings.Repeat(s, 4))
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func bytesReader(size int) io.Reader {
	return bytes.NewReader(make([]byte, size))
}
