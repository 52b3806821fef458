package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	StatusPending    ProjectStatus = "pending"
	StatusProcessing ProjectStatus = "processing"
	StatusCompleted  ProjectStatus = "completed"
	StatusFailed     ProjectStatus = "failed"
	StatusCancelled  ProjectStatus = "cancelled"
)

// Terminal reports whether no further lifecycle mutation is permitted.
func (s ProjectStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// InputDescriptor is the validated upload handed to the pipeline by the
// upload collaborator. Size and extension limits are enforced before this is
// built.
type InputDescriptor struct {
	OriginalFilename string
	StoredFilename   string
	InputPath        string
	FileSizeMB       float64
	FileFormat       string
}

// Project is one end-to-end conversion of a floor-plan image into a 3D
// model. Lifecycle fields (status, current step, progress, outputs, error)
// are written only by the pipeline state machine.
type Project struct {
	ID     int64
	UserID uuid.UUID

	OriginalFilename string
	StoredFilename   string
	InputPath        string
	FileSizeMB       float64
	FileFormat       string

	Status             ProjectStatus
	CurrentStep        string
	ProgressPercent    int
	OutputFiles        map[string]string
	ProcessingMetadata Metadata
	ErrorMessage       sql.NullString

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt sql.NullTime
}

// StatusSnapshot is the read-only view returned to polling clients.
type StatusSnapshot struct {
	ProjectID       int64
	Status          ProjectStatus
	CurrentStep     string
	ProgressPercent int
	OutputFiles     map[string]string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
