package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrNotAuthenticated indicates the operation has no resolvable caller.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden indicates the caller's role or ownership does not permit the operation.
	ErrForbidden = errors.New("operation not permitted")
	// ErrProjectNotFound indicates a project could not be found.
	ErrProjectNotFound = errors.New("project not found")
)

// Actor identifies the caller of a workflow operation.
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) authenticated() error {
	if a.ID == 0 || !a.Role.Valid() {
		return ErrNotAuthenticated
	}
	return nil
}

func (a Actor) requireReviewer() error {
	if err := a.authenticated(); err != nil {
		return err
	}
	if !a.Role.IsReviewer() {
		return ErrForbidden
	}
	return nil
}

// projectGuard resolves a project and checks the actor's relationship to it.
type projectGuard struct {
	projects repository.ProjectRepository
	teams    repository.TeamRepository
}

func (g projectGuard) load(ctx context.Context, id uint) (models.Project, error) {
	project, err := g.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, ErrProjectNotFound
		}
		return models.Project{}, err
	}
	return project, nil
}

// isContributor reports whether a student owns the project or belongs to its team.
func (g projectGuard) isContributor(ctx context.Context, actor Actor, project models.Project) (bool, error) {
	if actor.Role != models.RoleStudent {
		return false, nil
	}
	if project.StudentID == actor.ID {
		return true, nil
	}
	if project.TeamID == nil || g.teams == nil {
		return false, nil
	}

	member, err := g.teams.FindMembership(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.TeamID == *project.TeamID, nil
}

func (g projectGuard) view(ctx context.Context, actor Actor, id uint) (models.Project, error) {
	if err := actor.authenticated(); err != nil {
		return models.Project{}, err
	}
	project, err := g.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if actor.Role.IsReviewer() {
		return project, nil
	}
	return g.requireContributor(ctx, actor, project)
}

func (g projectGuard) contribute(ctx context.Context, actor Actor, id uint) (models.Project, error) {
	if err := actor.authenticated(); err != nil {
		return models.Project{}, err
	}
	if actor.Role != models.RoleStudent {
		return models.Project{}, ErrForbidden
	}
	project, err := g.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	return g.requireContributor(ctx, actor, project)
}

func (g projectGuard) review(ctx context.Context, actor Actor, id uint) (models.Project, error) {
	if err := actor.requireReviewer(); err != nil {
		return models.Project{}, err
	}
	return g.load(ctx, id)
}

func (g projectGuard) requireContributor(ctx context.Context, actor Actor, project models.Project) (models.Project, error) {
	ok, err := g.isContributor(ctx, actor, project)
	if err != nil {
		return models.Project{}, err
	}
	if !ok {
		return models.Project{}, ErrForbidden
	}
	return project, nil
}
