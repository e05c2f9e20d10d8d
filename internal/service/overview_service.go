package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

// OverviewService aggregates milestone progress and document counts per project.
type OverviewService interface {
	OverviewInvalidator
	Get(ctx context.Context, actor Actor, projectID uint) (dto.ProjectOverviewResponse, error)
}

type overviewService struct {
	guard      projectGuard
	milestones repository.MilestoneRepository
	documents  repository.DocumentRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOverviewService builds the project overview aggregator. cache may be nil.
func NewOverviewService(projects repository.ProjectRepository, teams repository.TeamRepository, milestones repository.MilestoneRepository, documents repository.DocumentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) OverviewService {
	return &overviewService{
		guard:      projectGuard{projects: projects, teams: teams},
		milestones: milestones,
		documents:  documents,
		cache:      cache,
		cacheTTL:   ttl,
		logger:     logger.With().Str("component", "overview_service").Logger(),
		now:        time.Now,
	}
}

func overviewCacheKey(projectID uint) string {
	return fmt.Sprintf("overview:project:%d", projectID)
}

// overviewSnapshot is the cached part of an overview. Overdue flags depend on the
// clock, so they are derived from it on every read.
type overviewSnapshot struct {
	Milestones []models.Milestone  `json:"milestones"`
	Documents  dto.DocumentSummary `json:"documents"`
}

func (s *overviewService) Get(ctx context.Context, actor Actor, projectID uint) (dto.ProjectOverviewResponse, error) {
	project, err := s.guard.view(ctx, actor, projectID)
	if err != nil {
		return dto.ProjectOverviewResponse{}, err
	}

	snapshot, err := s.snapshot(ctx, project.ID)
	if err != nil {
		return dto.ProjectOverviewResponse{}, err
	}
	return s.build(project, snapshot), nil
}

func (s *overviewService) snapshot(ctx context.Context, projectID uint) (overviewSnapshot, error) {
	cacheKey := overviewCacheKey(projectID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var snapshot overviewSnapshot
			if unmarshalErr := json.Unmarshal(cached, &snapshot); unmarshalErr == nil {
				s.logger.Debug().Uint("project_id", projectID).Msg("overview cache hit")
				return snapshot, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read overview cache")
		}
	}

	milestones, err := s.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return overviewSnapshot{}, err
	}
	documents, err := s.documents.List(ctx, repository.DocumentFilter{ProjectID: &projectID})
	if err != nil {
		return overviewSnapshot{}, err
	}
	snapshot := overviewSnapshot{Milestones: milestones, Documents: summarizeDocuments(documents)}

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(snapshot)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store overview cache")
			}
		}
	}
	return snapshot, nil
}

func summarizeDocuments(documents []models.Document) dto.DocumentSummary {
	var summary dto.DocumentSummary
	for _, d := range documents {
		switch d.Status {
		case models.DocumentStatusApproved:
			summary.Approved++
		case models.DocumentStatusRejected:
			summary.Rejected++
		default:
			summary.Pending++
		}
	}
	return summary
}

func (s *overviewService) build(project models.Project, snapshot overviewSnapshot) dto.ProjectOverviewResponse {
	reference := s.now()
	milestones := snapshot.Milestones

	completed := 0
	for _, m := range milestones {
		if m.CompletedAt != nil {
			completed++
		}
	}

	return dto.ProjectOverviewResponse{
		Project:             dto.NewProjectResponse(project),
		Progress:            lifecycle.Progress(milestones),
		MilestonesTotal:     len(milestones),
		MilestonesCompleted: completed,
		MilestonesOverdue:   lifecycle.CountOverdue(milestones, reference),
		Milestones:          dto.NewMilestoneResponseSlice(milestones, reference),
		Documents:           snapshot.Documents,
		GeneratedAt:         reference.UTC(),
	}
}

func (s *overviewService) Invalidate(ctx context.Context, projectID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, overviewCacheKey(projectID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("project_id", projectID).Msg("failed to invalidate overview cache")
	}
}
