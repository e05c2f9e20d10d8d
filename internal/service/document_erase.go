package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

// documentEraser removes a document blob and then its row under a delete intent.
// Document deletion and project deletion both go through it so no row disappears
// while its blob is still stored.
type documentEraser struct {
	storage   FileStorage
	documents repository.DocumentRepository
	intents   IntentService
	logger    zerolog.Logger
}

// erase fails closed: when the blob cannot be removed the row is kept and the
// intent is rolled back. When the row delete fails after the blob is gone, the
// intent stays pending for the reconciler.
func (e documentEraser) erase(ctx context.Context, actorID uint, document models.Document) error {
	intent, err := e.intents.Begin(ctx, models.IntentDocumentDelete, actorID, map[string]interface{}{
		payloadProjectID:  document.ProjectID,
		payloadDocumentID: document.ID,
		payloadFilePath:   document.FilePath,
	})
	if err != nil {
		return err
	}

	if err := e.storage.Remove(ctx, document.FilePath); err != nil {
		rollBack(ctx, e.intents, e.logger, intent, err)
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := e.intents.Annotate(ctx, intent, map[string]interface{}{payloadBlobRemoved: true}); err != nil {
		e.logger.Warn().Err(err).Uint("intent_id", intent.ID).Msg("failed to record blob removal on intent")
	}

	if err := e.documents.Delete(ctx, document.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		e.logger.Error().Err(err).Uint("document_id", document.ID).Msg("document row kept after blob removal, leaving intent for reconciliation")
		return err
	}

	if err := e.intents.Complete(ctx, intent); err != nil {
		e.logger.Warn().Err(err).Uint("document_id", document.ID).Msg("delete finished but intent left open")
	}
	return nil
}

// eraseProject removes every document of a project, stopping at the first failure.
func (e documentEraser) eraseProject(ctx context.Context, actorID, projectID uint) (int, error) {
	documents, err := e.documents.List(ctx, repository.DocumentFilter{ProjectID: &projectID})
	if err != nil {
		return 0, err
	}
	for i, document := range documents {
		if err := e.erase(ctx, actorID, document); err != nil {
			return i, err
		}
	}
	return len(documents), nil
}
