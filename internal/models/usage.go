package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ActionType classifies a billable action in the usage log.
type ActionType string

const (
	ActionUpload     ActionType = "upload"
	ActionProcessing ActionType = "processing"
	ActionDownload   ActionType = "download"
	ActionAPICall    ActionType = "api_call"
	ActionExport     ActionType = "export"
)

// UsageLogEntry is one append-only record of a billable action. Entries are
// never updated or deleted.
type UsageLogEntry struct {
	ID              int64
	UserID          uuid.UUID
	ProjectID       sql.NullInt64
	Action          ActionType
	Endpoint        string
	FileSizeMB      float64
	DurationMS      int64
	RequestMetadata Metadata
	CreatedAt       time.Time
}

// UsageSummary aggregates a user's activity for one billing period.
type UsageSummary struct {
	UserID      uuid.UUID `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	Uploads     int64     `json:"uploads"`
	UploadedMB  float64   `json:"uploaded_mb"`
	Processed   int64     `json:"processed"`
	Exports     int64     `json:"exports"`
	Downloads   int64     `json:"downloads"`
}
