package usage

import (
	"fmt"
	"time"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/config"
	"planscape-backend/internal/models"
)

// Gate decides whether a user may admit a new project into the pipeline.
// Admission writes nothing: usage is recorded when the corresponding stage
// completes, so admitted-but-never-started work is never counted.
type Gate struct {
	ledger *Ledger
	quota  config.QuotaConfig
}

func NewGate(ledger *Ledger, quota config.QuotaConfig) *Gate {
	return &Gate{ledger: ledger, quota: quota}
}

// Admit returns nil or one of ErrInactiveAccount, ErrFileTooLarge,
// ErrQuotaExceeded.
func (g *Gate) Admit(user *models.User, requestedMB float64) error {
	if !user.IsActive {
		return fmt.Errorf("%w: user %s", apperrors.ErrInactiveAccount, user.ID)
	}

	maxUploads, maxFileMB := g.limitsFor(user.Tier)

	if maxFileMB > 0 && requestedMB > maxFileMB {
		return fmt.Errorf("%w: %.1f MB exceeds the %s tier limit of %.1f MB",
			apperrors.ErrFileTooLarge, requestedMB, user.Tier, maxFileMB)
	}

	if maxUploads > 0 {
		count, _, err := g.ledger.SumForPeriod(user.ID, models.ActionUpload, PeriodStart(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to check quota: %w", err)
		}
		if count >= maxUploads {
			return fmt.Errorf("%w: %d of %d uploads used this period on the %s tier",
				apperrors.ErrQuotaExceeded, count, maxUploads, user.Tier)
		}
	}
	return nil
}

// limitsFor returns (uploads per period, max file MB); zero means unlimited.
func (g *Gate) limitsFor(tier models.Tier) (int64, float64) {
	switch tier {
	case models.TierPro:
		return g.quota.ProUploads, g.quota.ProMaxFileMB
	case models.TierEnterprise:
		return g.quota.EnterpriseUploads, g.quota.EnterpriseMaxMB
	default:
		return g.quota.FreeUploads, g.quota.FreeMaxFileMB
	}
}
