package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/config"
	"github.com/noah-isme/projtrack-api/internal/handler"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
	"github.com/noah-isme/projtrack-api/internal/router"
	"github.com/noah-isme/projtrack-api/internal/service"
)

const harnessSecret = "handler-test-secret"

type blobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *blobStore) Upload(_ context.Context, name string, reader io.Reader) (service.StoredFile, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return service.StoredFile{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	path := "raw/" + name
	b.objects[path] = data
	return service.StoredFile{Path: path, URL: b.PublicURL(path), Size: int64(len(data))}, nil
}

func (b *blobStore) Remove(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	return nil
}

func (b *blobStore) PublicURL(path string) string {
	return "https://files.example.test/" + path
}

type harness struct {
	t       *testing.T
	app     *fiber.App
	db      *gorm.DB
	storage *blobStore

	student models.Profile
	mate    models.Profile
	faculty models.Profile
	admin   models.Profile
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	storage := &blobStore{objects: make(map[string][]byte)}

	profiles := repository.NewProfileRepository(db)
	projects := repository.NewProjectRepository(db)
	teams := repository.NewTeamRepository(db)
	documents := repository.NewDocumentRepository(db)
	milestones := repository.NewMilestoneRepository(db)
	tasks := repository.NewTaskRepository(db)
	reviews := repository.NewReviewAssignmentRepository(db)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), nil, logger)
	intents := service.NewIntentService(repository.NewIntentRepository(db), documents, milestones, storage, logger)
	overview := service.NewOverviewService(projects, teams, milestones, documents, nil, 0, logger)
	projectService := service.NewProjectService(service.ProjectServiceConfig{
		Projects:  projects,
		Teams:     teams,
		Reviews:   reviews,
		Documents: documents,
		Intents:   intents,
		Storage:   storage,
		Activity:  activity,
		Overview:  overview,
	}, validate, logger)
	documentService := service.NewDocumentService(service.DocumentServiceConfig{
		Documents: documents,
		Projects:  projects,
		Teams:     teams,
		Intents:   intents,
		Storage:   storage,
		Notifier:  notifications,
		Activity:  activity,
		Overview:  overview,
	}, validate, logger)
	milestoneService := service.NewMilestoneService(service.MilestoneServiceConfig{
		Milestones: milestones,
		Documents:  documents,
		Projects:   projects,
		Teams:      teams,
		Intents:    intents,
		Storage:    storage,
		Notifier:   notifications,
		Activity:   activity,
		Overview:   overview,
	}, validate, logger)
	taskService := service.NewTaskService(tasks, projects, teams, notifications, activity, validate, logger)
	feedbackService := service.NewFeedbackService(repository.NewFeedbackRepository(db), tasks, projects, teams, notifications, activity, validate, logger)
	teamService := service.NewTeamService(teams, profiles, projects, notifications, activity, validate, logger)
	reviewService := service.NewReviewAssignmentService(reviews, profiles, projects, notifications, activity, validate, logger)
	profileService := service.NewProfileService(profiles, activity, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Project Tracker API", AppEnv: "test"}, router.Dependencies{
		ProjectHandler:      handler.NewProjectHandler(projectService, overview, logger),
		DocumentHandler:     handler.NewDocumentHandler(documentService, logger),
		MilestoneHandler:    handler.NewMilestoneHandler(milestoneService, logger),
		TaskHandler:         handler.NewTaskHandler(taskService, feedbackService, logger),
		TeamHandler:         handler.NewTeamHandler(teamService, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		ProfileHandler:      handler.NewProfileHandler(profileService, reviewService, logger),
		AdminHandler:        handler.NewAdminHandler(activity, intents, reviewService, time.Minute, logger),
		JWTMiddleware:       middleware.JWTProtected(harnessSecret),
	})

	h := &harness{t: t, app: app, db: db, storage: storage}
	h.student = h.profile("sam@example.edu", "Sam Student", models.RoleStudent)
	h.mate = h.profile("mia@example.edu", "Mia Mate", models.RoleStudent)
	h.faculty = h.profile("fay@example.edu", "Fay Faculty", models.RoleFaculty)
	h.admin = h.profile("ada@example.edu", "Ada Admin", models.RoleAdmin)
	return h
}

func (h *harness) profile(email, name string, role models.Role) models.Profile {
	h.t.Helper()
	profile := models.Profile{Email: email, Name: name, Role: role}
	require.NoError(h.t, h.db.Create(&profile).Error)
	return profile
}

func (h *harness) token(profile models.Profile) string {
	h.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", profile.ID),
		"role": string(profile.Role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(harnessSecret))
	require.NoError(h.t, err)
	return token
}

// do sends a JSON request as the given profile; a zero profile sends no token.
func (h *harness) do(as models.Profile, method, path string, body interface{}) *http.Response {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(as, req)
}

func (h *harness) send(as models.Profile, req *http.Request) *http.Response {
	h.t.Helper()
	if as.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+h.token(as))
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	return resp
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	var payload envelope[T]
	decodeResponse(t, resp, &payload)
	return payload
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func pdfBytes(size int) []byte {
	content := bytes.Repeat([]byte("a"), size)
	copy(content, "%PDF-1.4\n")
	return content
}
