package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrDocumentFileRequired indicates the upload carried no file part.
	ErrDocumentFileRequired = errors.New("file is required")
	// ErrDocumentEmpty indicates a zero-length upload.
	ErrDocumentEmpty = errors.New("file is empty")
	// ErrDocumentTooLarge indicates the payload exceeded the configured limit.
	ErrDocumentTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrDocumentTypeNotAllowed indicates the sniffed MIME type is not accepted.
	ErrDocumentTypeNotAllowed = errors.New("file type not allowed")
	// ErrStorageFailure wraps errors returned by the object store.
	ErrStorageFailure = errors.New("file storage unavailable")
)

var allowedDocumentTypes = []string{
	"application/pdf",
	"application/zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// documentUploader stores a file and records it as a pending document. It is the
// shared middle section of the upload and milestone-attach sagas.
type documentUploader struct {
	storage   FileStorage
	documents repository.DocumentRepository
	intents   IntentService
	maxBytes  int64
	logger    zerolog.Logger
}

type inspectedFile struct {
	name     string
	mimeType string
	content  []byte
}

func (u documentUploader) inspect(file *multipart.FileHeader) (inspectedFile, error) {
	if file == nil {
		return inspectedFile{}, ErrDocumentFileRequired
	}
	if file.Size > u.maxBytes {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return inspectedFile{}, ErrDocumentTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return inspectedFile{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, u.maxBytes+1)); err != nil {
		return inspectedFile{}, err
	}
	if int64(buf.Len()) > u.maxBytes {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return inspectedFile{}, ErrDocumentTooLarge
	}
	if buf.Len() == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return inspectedFile{}, ErrDocumentEmpty
	}

	detected := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(baseMime(detected.String()), allowedDocumentTypes...) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return inspectedFile{}, fmt.Errorf("%w: %s", ErrDocumentTypeNotAllowed, detected.String())
	}

	return inspectedFile{
		name:     sanitizeFileName(file.Filename),
		mimeType: baseMime(detected.String()),
		content:  buf.Bytes(),
	}, nil
}

// stage uploads the blob and inserts the document row under an open intent. On
// failure the intent is rolled back when compensation succeeded and left pending
// for the sweep when it did not.
func (u documentUploader) stage(ctx context.Context, intent *models.WorkflowIntent, actor Actor, project models.Project, displayName string, file inspectedFile, progress ProgressFunc) (models.Document, error) {
	objectName := fmt.Sprintf("project-%d/%s-%s", project.ID, uuid.NewString()[:8], file.name)
	reader := newProgressReader(bytes.NewReader(file.content), int64(len(file.content)), progress)

	started := time.Now()
	stored, err := u.storage.Upload(ctx, objectName, reader)
	observability.UploadLatency().Observe(time.Since(started).Seconds())
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		rollBack(ctx, u.intents, u.logger, intent, err)
		return models.Document{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if err := u.intents.Annotate(ctx, intent, map[string]interface{}{payloadFilePath: stored.Path}); err != nil {
		u.logger.Warn().Err(err).Uint("intent_id", intent.ID).Msg("failed to record stored path on intent")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = file.name
	}
	size := stored.Size
	if size <= 0 {
		size = int64(len(file.content))
	}

	document := models.Document{
		ProjectID:  project.ID,
		Name:       name,
		FilePath:   stored.Path,
		FileURL:    stored.URL,
		FileType:   file.mimeType,
		FileSize:   size,
		UploadedBy: actor.ID,
		Status:     models.DocumentStatusPending,
	}
	if document.FileURL == "" {
		document.FileURL = u.storage.PublicURL(stored.Path)
	}

	if err := u.documents.Create(ctx, &document); err != nil {
		if removeErr := u.storage.Remove(ctx, stored.Path); removeErr != nil {
			u.logger.Error().Err(removeErr).
				Uint("intent_id", intent.ID).
				Str("file_path", stored.Path).
				Msg("compensation failed, leaving intent for reconciliation")
			intent.LastError = err.Error()
			if annotateErr := u.intents.Annotate(ctx, intent, nil); annotateErr != nil {
				u.logger.Warn().Err(annotateErr).Uint("intent_id", intent.ID).Msg("failed to record insert error on intent")
			}
			return models.Document{}, fmt.Errorf("persist document: %w", err)
		}
		rollBack(ctx, u.intents, u.logger, intent, err)
		return models.Document{}, fmt.Errorf("persist document: %w", err)
	}

	if err := u.intents.Annotate(ctx, intent, map[string]interface{}{payloadDocumentID: document.ID}); err != nil {
		u.logger.Warn().Err(err).Uint("intent_id", intent.ID).Msg("failed to record document id on intent")
	}

	observability.UploadRequests().WithLabelValues(file.mimeType).Inc()
	return document, nil
}

func baseMime(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
