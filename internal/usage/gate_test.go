package usage_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/config"
	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

func testQuota() config.QuotaConfig {
	return config.QuotaConfig{
		FreeUploads:       5,
		FreeMaxFileMB:     4,
		ProUploads:        100,
		ProMaxFileMB:      16,
		EnterpriseUploads: 0,
		EnterpriseMaxMB:   16,
	}
}

func newGate(t *testing.T) (*usage.Gate, *usage.Ledger, *store.Mem) {
	t.Helper()
	st := store.NewMem()
	ledger := usage.NewLedger(st)
	return usage.NewGate(ledger, testQuota()), ledger, st
}

func freeUser(t *testing.T, st *store.Mem) *models.User {
	t.Helper()
	user, err := st.EnsureUser(uuid.New(), "test@example.com")
	require.NoError(t, err)
	return user
}

func recordUploads(t *testing.T, ledger *usage.Ledger, user *models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, ledger.Record(usage.Entry{
			UserID:     user.ID,
			Action:     models.ActionUpload,
			Endpoint:   "projects.create",
			FileSizeMB: 1,
		}))
	}
}

func TestAdmit_UnderLimit(t *testing.T) {
	gate, ledger, st := newGate(t)
	user := freeUser(t, st)
	recordUploads(t, ledger, user, 4)

	assert.NoError(t, gate.Admit(user, 2.4))
}

func TestAdmit_AtLimit(t *testing.T) {
	gate, ledger, st := newGate(t)
	user := freeUser(t, st)
	recordUploads(t, ledger, user, 5)

	err := gate.Admit(user, 2.4)
	assert.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
}

func TestAdmit_FileTooLarge(t *testing.T) {
	gate, _, st := newGate(t)
	user := freeUser(t, st)

	err := gate.Admit(user, 4.5)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
}

func TestAdmit_InactiveAccount(t *testing.T) {
	gate, _, st := newGate(t)
	user := freeUser(t, st)
	user.IsActive = false

	err := gate.Admit(user, 1)
	assert.ErrorIs(t, err, apperrors.ErrInactiveAccount)
}

func TestAdmit_TierLimitsDiffer(t *testing.T) {
	gate, _, st := newGate(t)
	user := freeUser(t, st)

	// 10 MB is over the free cap but within the pro cap.
	assert.ErrorIs(t, gate.Admit(user, 10), apperrors.ErrFileTooLarge)

	user.Tier = models.TierPro
	assert.NoError(t, gate.Admit(user, 10))
}

func TestAdmit_EnterpriseUnlimitedUploads(t *testing.T) {
	gate, ledger, st := newGate(t)
	user := freeUser(t, st)
	user.Tier = models.TierEnterprise
	recordUploads(t, ledger, user, 500)

	assert.NoError(t, gate.Admit(user, 1))
}

func TestAdmit_WritesNoUsage(t *testing.T) {
	gate, ledger, st := newGate(t)
	user := freeUser(t, st)

	require.NoError(t, gate.Admit(user, 1))

	count, _, err := ledger.SumForPeriod(user.ID, models.ActionUpload, usage.PeriodStart(timeNow()))
	require.NoError(t, err)
	assert.Zero(t, count)
}
