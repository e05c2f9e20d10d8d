package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/handler"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/service"
)

type mockDocumentService struct {
	lastActor   service.Actor
	lastPayload dto.DocumentUploadRequest
	response    dto.DocumentResponse
	err         error
}

func (m *mockDocumentService) Upload(_ context.Context, actor service.Actor, payload dto.DocumentUploadRequest, file *multipart.FileHeader, progress service.ProgressFunc) (dto.DocumentResponse, error) {
	if file != nil {
		if _, err := file.Open(); err != nil {
			return dto.DocumentResponse{}, err
		}
	}
	m.lastActor = actor
	m.lastPayload = payload
	if progress != nil {
		progress(file.Size, file.Size)
	}
	return m.response, m.err
}

func (m *mockDocumentService) Review(_ context.Context, actor service.Actor, _ uint, _ dto.DocumentReviewRequest) (dto.DocumentResponse, error) {
	m.lastActor = actor
	return m.response, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, actor service.Actor, _ uint) error {
	m.lastActor = actor
	return m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ service.Actor, _ uint) (dto.DocumentResponse, error) {
	return m.response, m.err
}

func (m *mockDocumentService) ListByProject(_ context.Context, _ service.Actor, _ uint) ([]dto.DocumentResponse, error) {
	return []dto.DocumentResponse{m.response}, m.err
}

func documentApp(svc service.DocumentService, role string) *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", role)
		return c.Next()
	})
	handler.NewDocumentHandler(svc, zerolog.Nop()).Register(api)
	return app
}

func multipartUpload(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestDocumentHandler_UploadSuccess(t *testing.T) {
	svc := &mockDocumentService{response: dto.DocumentResponse{ID: 3, ProjectID: 9, Name: "Report", Status: "pending"}}
	app := documentApp(svc, "student")

	req := multipartUpload(t, "/api/v1/projects/9/documents", "report.pdf", []byte("%PDF-1.4"), map[string]string{"name": "Report"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                 `json:"success"`
		Data    dto.DocumentResponse `json:"data"`
		Message string               `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "document uploaded", response.Message)
	require.Equal(t, uint(7), svc.lastActor.ID)
	require.Equal(t, uint(9), svc.lastPayload.ProjectID)
	require.Equal(t, "Report", svc.lastPayload.Name)
	require.Equal(t, uint(3), response.Data.ID)
}

func TestDocumentHandler_MissingFile(t *testing.T) {
	app := documentApp(&mockDocumentService{}, "student")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/9/documents", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDocumentHandler_InvalidProjectID(t *testing.T) {
	app := documentApp(&mockDocumentService{}, "student")

	req := multipartUpload(t, "/api/v1/projects/abc/documents", "report.pdf", []byte("%PDF-1.4"), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDocumentHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "unauthenticated", err: service.ErrNotAuthenticated, statusCode: fiber.StatusUnauthorized},
		{name: "forbidden", err: service.ErrForbidden, statusCode: fiber.StatusForbidden},
		{name: "project_missing", err: service.ErrProjectNotFound, statusCode: fiber.StatusNotFound},
		{name: "locked", err: service.ErrProjectLocked, statusCode: fiber.StatusConflict},
		{name: "too_large", err: fmt.Errorf("%w: 30MB", service.ErrDocumentTooLarge), statusCode: fiber.StatusRequestEntityTooLarge},
		{name: "type", err: fmt.Errorf("%w: application/x-msdownload", service.ErrDocumentTypeNotAllowed), statusCode: fiber.StatusUnsupportedMediaType},
		{name: "empty", err: service.ErrDocumentEmpty, statusCode: fiber.StatusBadRequest},
		{name: "storage", err: fmt.Errorf("%w: timeout", service.ErrStorageFailure), statusCode: fiber.StatusBadGateway},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := documentApp(&mockDocumentService{err: tc.err}, "student")

			req := multipartUpload(t, "/api/v1/projects/1/documents", "doc.pdf", []byte("%PDF-1.4"), nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestDocumentHandler_ReviewRequiresReviewer(t *testing.T) {
	svc := &mockDocumentService{response: dto.DocumentResponse{ID: 3, Status: "approved"}}

	body := bytes.NewBufferString(`{"status":"approved"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/documents/3/review", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := documentApp(svc, "student").Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	svc.err = &lifecycle.TransitionError{Entity: "document", From: "approved", To: "rejected"}
	body = bytes.NewBufferString(`{"status":"rejected"}`)
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/documents/3/review", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err = documentApp(svc, "faculty").Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
