package store

import (
	"time"

	"github.com/google/uuid"

	"planscape-backend/internal/models"
)

// Store is the persistence boundary for users, projects, and the usage log.
// Two implementations exist: Postgres for real deployments and Mem for tests
// and DATABASE_URL-less local runs.
type Store interface {
	// Users
	EnsureUser(id uuid.UUID, email string) (*models.User, error)
	GetUser(id uuid.UUID) (*models.User, error)
	SetUserTier(id uuid.UUID, tier models.Tier) error

	// Projects
	CreateProject(p *models.Project) (*models.Project, error)
	GetProject(id int64) (*models.Project, error)
	ListProjects(userID uuid.UUID) ([]models.Project, error)
	// SaveLifecycle writes every lifecycle column of p in one atomic
	// statement, but only while the stored status is one of from. It
	// returns false without writing when the precondition does not hold,
	// and refreshes p.UpdatedAt on success. It is the only project
	// mutation after creation.
	SaveLifecycle(p *models.Project, from ...models.ProjectStatus) (bool, error)

	// Usage log. AppendUsage is the only mutation; entries are never
	// updated or deleted.
	AppendUsage(e *models.UsageLogEntry) error
	SumForPeriod(userID uuid.UUID, action models.ActionType, since time.Time) (count int64, totalMB float64, err error)

	Close() error
}
