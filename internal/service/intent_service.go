package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

const (
	payloadProjectID   = "project_id"
	payloadDocumentID  = "document_id"
	payloadMilestoneID = "milestone_id"
	payloadFilePath    = "file_path"
	payloadBlobRemoved = "blob_removed"

	maxIntentAttempts = 5
	sweepBatchSize    = 100
)

// IntentService tracks multi-step workflows so partial failures can be repaired.
type IntentService interface {
	Begin(ctx context.Context, kind models.IntentKind, actorID uint, payload map[string]interface{}) (*models.WorkflowIntent, error)
	Annotate(ctx context.Context, intent *models.WorkflowIntent, values map[string]interface{}) error
	Complete(ctx context.Context, intent *models.WorkflowIntent) error
	RollBack(ctx context.Context, intent *models.WorkflowIntent, cause error) error
	Fail(ctx context.Context, intent *models.WorkflowIntent, cause error) error
	ListPending(ctx context.Context, actor Actor, limit int) ([]dto.IntentResponse, error)
	Sweep(ctx context.Context, actor Actor, olderThan time.Duration) (dto.SweepResponse, error)
	Reconcile(ctx context.Context, olderThan time.Duration) (dto.SweepResponse, error)
}

type intentService struct {
	intents    repository.IntentRepository
	documents  repository.DocumentRepository
	milestones repository.MilestoneRepository
	storage    FileStorage
	logger     zerolog.Logger
	now        func() time.Time
}

// NewIntentService constructs the workflow intent tracker and reconciler.
func NewIntentService(intents repository.IntentRepository, documents repository.DocumentRepository, milestones repository.MilestoneRepository, storage FileStorage, logger zerolog.Logger) IntentService {
	return &intentService{
		intents:    intents,
		documents:  documents,
		milestones: milestones,
		storage:    storage,
		logger:     logger.With().Str("component", "intent_service").Logger(),
		now:        time.Now,
	}
}

func (s *intentService) Begin(ctx context.Context, kind models.IntentKind, actorID uint, payload map[string]interface{}) (*models.WorkflowIntent, error) {
	intent := &models.WorkflowIntent{
		Kind:    kind,
		State:   models.IntentStatePending,
		ActorID: actorID,
		Payload: datatypes.JSONMap{},
	}
	for key, value := range payload {
		intent.Payload[key] = value
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("begin %s intent: %w", kind, err)
	}
	return intent, nil
}

func (s *intentService) Annotate(ctx context.Context, intent *models.WorkflowIntent, values map[string]interface{}) error {
	if intent.Payload == nil {
		intent.Payload = datatypes.JSONMap{}
	}
	for key, value := range values {
		intent.Payload[key] = value
	}
	return s.intents.Update(ctx, intent)
}

func (s *intentService) Complete(ctx context.Context, intent *models.WorkflowIntent) error {
	return s.close(ctx, intent, models.IntentStateCompleted, nil)
}

func (s *intentService) RollBack(ctx context.Context, intent *models.WorkflowIntent, cause error) error {
	return s.close(ctx, intent, models.IntentStateRolledBack, cause)
}

func (s *intentService) Fail(ctx context.Context, intent *models.WorkflowIntent, cause error) error {
	return s.close(ctx, intent, models.IntentStateFailed, cause)
}

// rollBack closes an intent after its compensation succeeded. The caller is already
// returning the original failure, so a bookkeeping error is only logged.
func rollBack(ctx context.Context, intents IntentService, logger zerolog.Logger, intent *models.WorkflowIntent, cause error) {
	if err := intents.RollBack(ctx, intent, cause); err != nil {
		logger.Warn().Err(err).
			Uint("intent_id", intent.ID).
			Str("intent_kind", string(intent.Kind)).
			Msg("failed to roll back workflow intent")
	}
}

func (s *intentService) close(ctx context.Context, intent *models.WorkflowIntent, state models.IntentState, cause error) error {
	intent.State = state
	if cause != nil {
		intent.LastError = cause.Error()
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		s.logger.Warn().Err(err).Uint("intent_id", intent.ID).Str("state", string(state)).Msg("failed to close workflow intent")
		return err
	}
	return nil
}

func (s *intentService) ListPending(ctx context.Context, actor Actor, limit int) ([]dto.IntentResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	intents, err := s.intents.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.IntentResponse, 0, len(intents))
	for _, intent := range intents {
		out = append(out, dto.NewIntentResponse(intent))
	}
	return out, nil
}

func (s *intentService) Sweep(ctx context.Context, actor Actor, olderThan time.Duration) (dto.SweepResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.SweepResponse{}, err
	}
	return s.Reconcile(ctx, olderThan)
}

// Reconcile repairs pending intents that have not been touched for olderThan.
func (s *intentService) Reconcile(ctx context.Context, olderThan time.Duration) (dto.SweepResponse, error) {
	intents, err := s.intents.ListPending(ctx, sweepBatchSize)
	if err != nil {
		return dto.SweepResponse{}, err
	}

	cutoff := s.now().Add(-olderThan)
	var summary dto.SweepResponse
	for i := range intents {
		intent := &intents[i]
		if intent.UpdatedAt.After(cutoff) {
			continue
		}
		summary.Scanned++

		outcome, cause := s.reconcile(ctx, intent)
		if outcome == models.IntentStatePending {
			intent.Attempts++
			if cause != nil {
				intent.LastError = cause.Error()
			}
			if intent.Attempts >= maxIntentAttempts {
				outcome = models.IntentStateFailed
			}
		}

		if outcome == models.IntentStatePending {
			if err := s.intents.Update(ctx, intent); err != nil {
				return summary, err
			}
			summary.Retrying++
		} else {
			if err := s.close(ctx, intent, outcome, cause); err != nil {
				return summary, err
			}
			switch outcome {
			case models.IntentStateCompleted:
				summary.Completed++
			case models.IntentStateRolledBack:
				summary.RolledBack++
			case models.IntentStateFailed:
				summary.Failed++
			}
		}

		observability.IntentsReconciled().WithLabelValues(string(intent.Kind), string(outcome)).Inc()
		s.logger.Info().
			Uint("intent_id", intent.ID).
			Str("kind", string(intent.Kind)).
			Str("outcome", string(outcome)).
			Int("attempts", intent.Attempts).
			Msg("reconciled workflow intent")
	}

	return summary, nil
}

func (s *intentService) reconcile(ctx context.Context, intent *models.WorkflowIntent) (models.IntentState, error) {
	switch intent.Kind {
	case models.IntentDocumentUpload:
		return s.reconcileUpload(ctx, intent)
	case models.IntentMilestoneAttach:
		return s.reconcileAttach(ctx, intent)
	case models.IntentDocumentDelete:
		return s.reconcileDelete(ctx, intent)
	default:
		return models.IntentStateFailed, fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
}

// reconcileUpload keeps an upload whose row exists and discards an orphaned blob.
func (s *intentService) reconcileUpload(ctx context.Context, intent *models.WorkflowIntent) (models.IntentState, error) {
	document, found, err := s.findDocument(ctx, intent)
	if err != nil {
		return models.IntentStatePending, err
	}
	if found {
		intent.Payload[payloadDocumentID] = document.ID
		return models.IntentStateCompleted, nil
	}
	return s.discardBlob(ctx, intent, models.IntentStateRolledBack)
}

// reconcileAttach finishes a milestone link forward when the document was stored.
func (s *intentService) reconcileAttach(ctx context.Context, intent *models.WorkflowIntent) (models.IntentState, error) {
	milestoneID, ok := payloadUint(intent.Payload, payloadMilestoneID)
	if !ok {
		return models.IntentStateFailed, errors.New("intent payload has no milestone id")
	}

	document, found, err := s.findDocument(ctx, intent)
	if err != nil {
		return models.IntentStatePending, err
	}
	if !found {
		state, cause := s.discardBlob(ctx, intent, models.IntentStateFailed)
		if cause == nil {
			cause = errors.New("attached document was never stored")
		}
		return state, cause
	}

	milestone, err := s.milestones.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.IntentStateFailed, ErrMilestoneNotFound
		}
		return models.IntentStatePending, err
	}

	if milestone.DocumentID != nil && *milestone.DocumentID == document.ID {
		return models.IntentStateCompleted, nil
	}
	if milestone.CompletedAt != nil {
		return models.IntentStateFailed, errors.New("milestone completed before the document was linked")
	}

	milestone.DocumentID = uintPtr(document.ID)
	milestone.Document = nil
	if err := s.milestones.Update(ctx, &milestone, "document_id"); err != nil {
		return models.IntentStatePending, err
	}
	return models.IntentStateCompleted, nil
}

// reconcileDelete finishes a delete whose blob is already gone.
func (s *intentService) reconcileDelete(ctx context.Context, intent *models.WorkflowIntent) (models.IntentState, error) {
	if removed, _ := intent.Payload[payloadBlobRemoved].(bool); !removed {
		return models.IntentStateRolledBack, errors.New("stored object was never removed")
	}

	documentID, ok := payloadUint(intent.Payload, payloadDocumentID)
	if !ok {
		return models.IntentStateFailed, errors.New("intent payload has no document id")
	}
	if err := s.documents.Delete(ctx, documentID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.IntentStatePending, err
	}
	return models.IntentStateCompleted, nil
}

func (s *intentService) findDocument(ctx context.Context, intent *models.WorkflowIntent) (models.Document, bool, error) {
	var (
		document models.Document
		err      error
	)
	if id, ok := payloadUint(intent.Payload, payloadDocumentID); ok {
		document, err = s.documents.GetByID(ctx, id)
	} else if path := payloadString(intent.Payload, payloadFilePath); path != "" {
		document, err = s.documents.FindByFilePath(ctx, path)
	} else {
		return models.Document{}, false, nil
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, false, nil
		}
		return models.Document{}, false, err
	}
	return document, true, nil
}

func (s *intentService) discardBlob(ctx context.Context, intent *models.WorkflowIntent, done models.IntentState) (models.IntentState, error) {
	path := payloadString(intent.Payload, payloadFilePath)
	if path == "" || s.storage == nil {
		return done, nil
	}
	if err := s.storage.Remove(ctx, path); err != nil {
		return models.IntentStatePending, fmt.Errorf("remove orphaned object: %w", err)
	}
	return done, nil
}

func requireAdmin(actor Actor) error {
	if err := actor.authenticated(); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// payloadUint reads an id that may have round-tripped through JSON.
func payloadUint(payload datatypes.JSONMap, key string) (uint, bool) {
	switch v := payload[key].(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	case json.Number:
		n, err := v.Int64()
		return uint(n), err == nil && n > 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return uint(n), err == nil && n > 0
	default:
		return 0, false
	}
}

func payloadString(payload datatypes.JSONMap, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
