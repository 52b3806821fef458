package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/models"
)

// Mem is an in-memory Store used by tests and by local runs without
// DATABASE_URL. All methods copy on the way in and out so callers never
// share mutable state with the store.
type Mem struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	projects map[int64]models.Project
	usage    []models.UsageLogEntry
	nextID   int64
	nextUse  int64
}

func NewMem() *Mem {
	return &Mem{
		users:    make(map[uuid.UUID]models.User),
		projects: make(map[int64]models.Project),
		nextID:   1,
		nextUse:  1,
	}
}

func (s *Mem) EnsureUser(id uuid.UUID, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := s.users[id]; ok {
		u.Email = email
		u.UpdatedAt = now
		s.users[id] = u
		out := u
		return &out, nil
	}
	u := models.User{
		ID:        id,
		Email:     email,
		Tier:      models.TierFree,
		APIKey:    uuid.NewString(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[id] = u
	out := u
	return &out, nil
}

func (s *Mem) GetUser(id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *Mem) SetUserTier(id uuid.UUID, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Tier = tier
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Mem) CreateProject(p *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	stored := copyProject(*p)
	stored.ID = s.nextID
	s.nextID++
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.projects[stored.ID] = stored
	out := copyProject(stored)
	return &out, nil
}

func (s *Mem) GetProject(id int64) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := copyProject(p)
	return &out, nil
}

func (s *Mem) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, copyProject(p))
		}
	}
	return out, nil
}

func (s *Mem) SaveLifecycle(p *models.Project, from ...models.ProjectStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.projects[p.ID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	// Precondition and write share the mutex so the stored status can
	// never change between them.
	allowed := false
	for _, status := range from {
		if stored.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	stored.Status = p.Status
	stored.CurrentStep = p.CurrentStep
	stored.ProgressPercent = p.ProgressPercent
	stored.OutputFiles = copyFiles(p.OutputFiles)
	stored.ProcessingMetadata = p.ProcessingMetadata.Clone()
	stored.ErrorMessage = p.ErrorMessage
	stored.CompletedAt = p.CompletedAt
	stored.UpdatedAt = time.Now().UTC()
	s.projects[p.ID] = stored
	p.UpdatedAt = stored.UpdatedAt
	return true, nil
}

func (s *Mem) AppendUsage(e *models.UsageLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextUse
	s.nextUse++
	e.CreatedAt = time.Now().UTC()
	stored := *e
	stored.RequestMetadata = e.RequestMetadata.Clone()
	s.usage = append(s.usage, stored)
	return nil
}

func (s *Mem) SumForPeriod(userID uuid.UUID, action models.ActionType, since time.Time) (int64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	var totalMB float64
	for _, e := range s.usage {
		if e.UserID == userID && e.Action == action && !e.CreatedAt.Before(since) {
			count++
			totalMB += e.FileSizeMB
		}
	}
	return count, totalMB, nil
}

func (s *Mem) Close() error { return nil }

func copyProject(p models.Project) models.Project {
	p.OutputFiles = copyFiles(p.OutputFiles)
	p.ProcessingMetadata = p.ProcessingMetadata.Clone()
	return p
}

func copyFiles(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
