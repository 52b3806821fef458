package store_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
)

func newProject(userID uuid.UUID) *models.Project {
	return &models.Project{
		UserID:           userID,
		OriginalFilename: "plan.png",
		StoredFilename:   "abc.png",
		InputPath:        "/uploads/abc.png",
		FileSizeMB:       2.4,
		FileFormat:       "png",
		Status:           models.StatusPending,
	}
}

func TestMem_EnsureUserIsUpsert(t *testing.T) {
	st := store.NewMem()
	id := uuid.New()

	created, err := st.EnsureUser(id, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, created.Tier)
	assert.True(t, created.IsActive)

	updated, err := st.EnsureUser(id, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "b@example.com", updated.Email)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestMem_SetUserTier(t *testing.T) {
	st := store.NewMem()
	id := uuid.New()
	_, err := st.EnsureUser(id, "a@example.com")
	require.NoError(t, err)

	require.NoError(t, st.SetUserTier(id, models.TierPro))
	user, err := st.GetUser(id)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, user.Tier)

	assert.ErrorIs(t, st.SetUserTier(uuid.New(), models.TierPro), apperrors.ErrNotFound)
}

func TestMem_CreateAssignsSequentialIDs(t *testing.T) {
	st := store.NewMem()
	userID := uuid.New()

	first, err := st.CreateProject(newProject(userID))
	require.NoError(t, err)
	second, err := st.CreateProject(newProject(userID))
	require.NoError(t, err)

	assert.Equal(t, first.ID+1, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestMem_GetProjectNotFound(t *testing.T) {
	st := store.NewMem()
	_, err := st.GetProject(42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMem_ListProjectsScopedToUser(t *testing.T) {
	st := store.NewMem()
	alice := uuid.New()
	bob := uuid.New()

	_, err := st.CreateProject(newProject(alice))
	require.NoError(t, err)
	_, err = st.CreateProject(newProject(alice))
	require.NoError(t, err)
	_, err = st.CreateProject(newProject(bob))
	require.NoError(t, err)

	projects, err := st.ListProjects(alice)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestMem_SaveLifecycle(t *testing.T) {
	st := store.NewMem()
	project, err := st.CreateProject(newProject(uuid.New()))
	require.NoError(t, err)

	project.Status = models.StatusFailed
	project.CurrentStep = "scaling"
	project.ProgressPercent = 25
	project.ErrorMessage = sql.NullString{String: "stage scaling: no reference", Valid: true}
	project.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	saved, err := st.SaveLifecycle(project, models.StatusPending)
	require.NoError(t, err)
	require.True(t, saved)

	stored, err := st.GetProject(project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, "scaling", stored.CurrentStep)
	assert.Equal(t, 25, stored.ProgressPercent)
	assert.True(t, stored.ErrorMessage.Valid)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt) || stored.UpdatedAt.Equal(stored.CreatedAt))
}

func TestMem_SaveLifecycleStatusPrecondition(t *testing.T) {
	st := store.NewMem()
	project, err := st.CreateProject(newProject(uuid.New()))
	require.NoError(t, err)

	project.Status = models.StatusCompleted
	project.ProgressPercent = 100
	project.OutputFiles = map[string]string{"obj": "/a"}
	saved, err := st.SaveLifecycle(project, models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	require.True(t, saved)

	// A write whose precondition no longer holds is refused and leaves the
	// stored record untouched.
	stale := *project
	stale.Status = models.StatusCancelled
	stale.ProgressPercent = 0
	stale.OutputFiles = nil
	saved, err = st.SaveLifecycle(&stale, models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, saved)

	stored, err := st.GetProject(project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.ProgressPercent)
	assert.Equal(t, "/a", stored.OutputFiles["obj"])

	saved, err = st.SaveLifecycle(&stale, models.ProjectStatus("unknown"))
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestMem_ReturnsCopies(t *testing.T) {
	st := store.NewMem()
	created, err := st.CreateProject(newProject(uuid.New()))
	require.NoError(t, err)

	created.OutputFiles = map[string]string{"obj": "/a"}
	saved, err := st.SaveLifecycle(created, models.StatusPending)
	require.NoError(t, err)
	require.True(t, saved)

	got, err := st.GetProject(created.ID)
	require.NoError(t, err)
	got.OutputFiles["obj"] = "/tampered"
	got.Status = models.StatusCancelled

	fresh, err := st.GetProject(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "/a", fresh.OutputFiles["obj"])
	assert.Equal(t, models.StatusPending, fresh.Status)
}
