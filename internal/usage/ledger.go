package usage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"planscape-backend/internal/models"
)

// Recorder is the slice of the store the ledger needs: append plus one
// aggregate read.
type Recorder interface {
	AppendUsage(e *models.UsageLogEntry) error
	SumForPeriod(userID uuid.UUID, action models.ActionType, since time.Time) (count int64, totalMB float64, err error)
}

// Ledger appends billable actions and answers period aggregates. It never
// mutates or deletes existing entries.
type Ledger struct {
	rec Recorder
}

func NewLedger(rec Recorder) *Ledger {
	return &Ledger{rec: rec}
}

// Entry describes one billable action to record.
type Entry struct {
	UserID     uuid.UUID
	ProjectID  *int64
	Action     models.ActionType
	Endpoint   string
	FileSizeMB float64
	Duration   time.Duration
	Metadata   models.Metadata
}

func (l *Ledger) Record(e Entry) error {
	entry := &models.UsageLogEntry{
		UserID:          e.UserID,
		Action:          e.Action,
		Endpoint:        e.Endpoint,
		FileSizeMB:      e.FileSizeMB,
		DurationMS:      e.Duration.Milliseconds(),
		RequestMetadata: e.Metadata,
	}
	if e.ProjectID != nil {
		entry.ProjectID = sql.NullInt64{Int64: *e.ProjectID, Valid: true}
	}
	if err := l.rec.AppendUsage(entry); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func (l *Ledger) SumForPeriod(userID uuid.UUID, action models.ActionType, since time.Time) (int64, float64, error) {
	return l.rec.SumForPeriod(userID, action, since)
}

// PeriodStart returns the start of the current billing period: the first of
// the calendar month, UTC.
func PeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Summary aggregates a user's current-period activity for the billing
// surface.
func (l *Ledger) Summary(userID uuid.UUID) (*models.UsageSummary, error) {
	since := PeriodStart(time.Now())
	summary := &models.UsageSummary{UserID: userID, PeriodStart: since}

	uploads, uploadedMB, err := l.rec.SumForPeriod(userID, models.ActionUpload, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum uploads: %w", err)
	}
	summary.Uploads = uploads
	summary.UploadedMB = uploadedMB

	if summary.Processed, _, err = l.rec.SumForPeriod(userID, models.ActionProcessing, since); err != nil {
		return nil, fmt.Errorf("failed to sum processing: %w", err)
	}
	if summary.Exports, _, err = l.rec.SumForPeriod(userID, models.ActionExport, since); err != nil {
		return nil, fmt.Errorf("failed to sum exports: %w", err)
	}
	if summary.Downloads, _, err = l.rec.SumForPeriod(userID, models.ActionDownload, since); err != nil {
		return nil, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return summary, nil
}
