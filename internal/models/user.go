package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a user's subscription tier. Per-tier limits live in config, not
// here.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

type User struct {
	ID         uuid.UUID
	Email      string
	Tier       Tier
	APIKey     string
	IsActive   bool
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
