package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/artifacts"
	"planscape-backend/internal/builder"
	"planscape-backend/internal/extractor"
	"planscape-backend/internal/geometry"
	"planscape-backend/internal/models"
	"planscape-backend/internal/realtime"
	"planscape-backend/internal/scaler"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

// Stage names recorded in current_step and in failure messages.
const (
	StageExtract = "extract"
	StageScaling = "scaling"
	StageBuild   = "build"
	StageExport  = "export"
)

// Stage-proportional progress after each stage completes.
const (
	progressExtract = 25
	progressScaling = 50
	progressBuild   = 75
	progressExport  = 100
)

// RunOptions carries per-run parameters supplied by the process request.
type RunOptions struct {
	// Reference overrides any scale reference embedded in the extracted
	// geometry.
	Reference *geometry.ScaleReference
	// Formats to export; defaults to the configured formats when empty.
	Formats []string
}

// StateMachine owns every project lifecycle mutation. It admits projects
// through the quota gate, drives the four pipeline stages in order, and
// persists progress after every stage so clients can poll at any time.
type StateMachine struct {
	store     store.Store
	gate      *usage.Gate
	ledger    *usage.Ledger
	extractor extractor.Extractor
	builder   *builder.Builder
	artifacts artifacts.Store
	mirror    *artifacts.BucketMirror
	publisher *realtime.Publisher
	logger    *zap.Logger

	defaultFormats []string

	mu      sync.Mutex
	running map[int64]*runHandle
}

type runHandle struct {
	cancelled bool
}

func NewStateMachine(
	st store.Store,
	gate *usage.Gate,
	ledger *usage.Ledger,
	ext extractor.Extractor,
	b *builder.Builder,
	art artifacts.Store,
	publisher *realtime.Publisher,
	defaultFormats []string,
	logger *zap.Logger,
) *StateMachine {
	return &StateMachine{
		store:          st,
		gate:           gate,
		ledger:         ledger,
		extractor:      ext,
		builder:        b,
		artifacts:      art,
		publisher:      publisher,
		defaultFormats: defaultFormats,
		logger:         logger,
		running:        make(map[int64]*runHandle),
	}
}

// UseMirror enables best-effort mirroring of completed exports to a storage
// bucket. Mirror failures never fail the project; the disk paths stay
// authoritative.
func (sm *StateMachine) UseMirror(m *artifacts.BucketMirror) {
	sm.mirror = m
}

// Create admits a new project through the quota gate and persists it in
// pending with progress 0. Nothing is written when admission or validation
// fails. On success an upload entry is appended to the usage ledger: the
// upload stage is complete once the project record exists.
func (sm *StateMachine) Create(user *models.User, in models.InputDescriptor) (*models.Project, error) {
	if err := validateDescriptor(in); err != nil {
		return nil, err
	}
	if err := sm.gate.Admit(user, in.FileSizeMB); err != nil {
		return nil, err
	}

	project, err := sm.store.CreateProject(&models.Project{
		UserID:           user.ID,
		OriginalFilename: in.OriginalFilename,
		StoredFilename:   in.StoredFilename,
		InputPath:        in.InputPath,
		FileSizeMB:       in.FileSizeMB,
		FileFormat:       in.FileFormat,
		Status:           models.StatusPending,
		ProgressPercent:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist project: %w", err)
	}

	if err := sm.ledger.Record(usage.Entry{
		UserID:     user.ID,
		ProjectID:  &project.ID,
		Action:     models.ActionUpload,
		Endpoint:   "projects.create",
		FileSizeMB: in.FileSizeMB,
	}); err != nil {
		sm.logger.Warn("failed to record upload usage",
			zap.Int64("project_id", project.ID), zap.Error(err))
	}

	sm.logger.Info("project created",
		zap.Int64("project_id", project.ID),
		zap.String("user_id", user.ID.String()),
		zap.String("format", in.FileFormat))
	return project, nil
}

func validateDescriptor(in models.InputDescriptor) error {
	if in.OriginalFilename == "" || in.StoredFilename == "" || in.InputPath == "" {
		return fmt.Errorf("%w: incomplete input descriptor", apperrors.ErrInvalidInput)
	}
	if in.FileSizeMB <= 0 {
		return fmt.Errorf("%w: file size %v MB is not positive", apperrors.ErrInvalidInput, in.FileSizeMB)
	}
	if in.FileFormat == "" {
		return fmt.Errorf("%w: missing file format", apperrors.ErrInvalidInput)
	}
	return nil
}

// Run drives a pending project through extract, scaling, build, and export.
// Concurrency, not-found, and illegal-transition errors are returned
// synchronously; stage failures are absorbed into a terminal failed state
// and observed via GetStatus, so Run returns nil for them.
func (sm *StateMachine) Run(ctx context.Context, projectID int64, opts RunOptions) error {
	handle, err := sm.acquire(projectID)
	if err != nil {
		return err
	}
	defer sm.release(projectID)

	project, err := sm.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if project.Status != models.StatusPending {
		return fmt.Errorf("%w: cannot run project %d in status %s",
			apperrors.ErrIllegalTransition, projectID, project.Status)
	}

	started := time.Now()
	project.Status = models.StatusProcessing
	project.CurrentStep = StageExtract
	// Every lifecycle write below is a compare-and-set on the stored
	// status: a cancel that lands first makes the write a no-op and the
	// run ends without touching the terminal record.
	saved, err := sm.store.SaveLifecycle(project, models.StatusPending)
	if err != nil {
		return err
	}
	if !saved {
		return nil
	}
	sm.publisher.PublishProjectEvent(project.ID, "processing_started",
		realtime.StatusChangedPayload(project.ID, string(project.Status), project.ProgressPercent))

	// Stage 1: extract geometry.
	raw, err := sm.extractor.Extract(ctx, project.InputPath)
	if err != nil {
		return sm.fail(project, StageExtract, err)
	}
	project.CurrentStep = StageScaling
	project.ProgressPercent = progressExtract
	sm.setMeta(project, StageExtract, models.MetaMap(models.Metadata{
		"rooms": models.MetaNumber(float64(len(raw.Rooms))),
		"walls": models.MetaNumber(float64(len(raw.Walls))),
	}))
	if stop, err := sm.checkpoint(handle, project); stop || err != nil {
		return err
	}

	// Stage 2: scale coordinates.
	scaled, err := scaler.Scale(raw, opts.Reference)
	if err != nil {
		return sm.fail(project, StageScaling, err)
	}
	project.CurrentStep = StageBuild
	project.ProgressPercent = progressScaling
	sm.setMeta(project, StageScaling, models.MetaMap(models.Metadata{
		"factor": models.MetaNumber(scaled.Factor),
	}))
	if stop, err := sm.checkpoint(handle, project); stop || err != nil {
		return err
	}

	// Stage 3: build the 3D model.
	model, err := sm.builder.Build(scaled)
	if err != nil {
		return sm.fail(project, StageBuild, err)
	}
	project.CurrentStep = StageExport
	project.ProgressPercent = progressBuild
	sm.setMeta(project, StageBuild, models.MetaMap(models.Metadata{
		"meshes":    models.MetaNumber(float64(len(model.Meshes))),
		"vertices":  models.MetaNumber(float64(model.VertexCount())),
		"triangles": models.MetaNumber(float64(model.TriangleCount())),
	}))
	if stop, err := sm.checkpoint(handle, project); stop || err != nil {
		return err
	}

	// Stage 4: export. Formats are isolated; the project completes when at
	// least one format succeeds and fails only when all do.
	formats := opts.Formats
	if len(formats) == 0 {
		formats = sm.defaultFormats
	}
	results := sm.builder.Export(model, formats, func(kind string) (string, error) {
		return sm.artifacts.ReservePath(project.ID, kind)
	})

	outputs := make(map[string]string)
	exportErrors := models.Metadata{}
	for _, r := range results {
		if r.Err != nil {
			exportErrors[r.Format] = models.MetaString(r.Err.Error())
			sm.logger.Warn("export format failed",
				zap.Int64("project_id", project.ID),
				zap.String("format", r.Format),
				zap.Error(r.Err))
			continue
		}
		outputs[r.Format] = r.Path
	}
	if len(exportErrors) > 0 {
		sm.setMeta(project, "export_errors", models.MetaMap(exportErrors))
	}
	if len(outputs) == 0 {
		return sm.fail(project, StageExport,
			fmt.Errorf("%w: all %d formats failed", apperrors.ErrExport, len(results)))
	}

	if urls := sm.mirrorOutputs(project, outputs); len(urls) > 0 {
		sm.setMeta(project, "mirror_urls", models.MetaMap(urls))
	}

	project.Status = models.StatusCompleted
	project.CurrentStep = StageExport
	project.ProgressPercent = progressExport
	project.OutputFiles = outputs
	project.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	saved, err = sm.store.SaveLifecycle(project, models.StatusProcessing)
	if err != nil {
		return err
	}
	if !saved {
		return nil
	}

	if err := sm.ledger.Record(usage.Entry{
		UserID:     project.UserID,
		ProjectID:  &project.ID,
		Action:     models.ActionProcessing,
		Endpoint:   "pipeline.run",
		FileSizeMB: project.FileSizeMB,
		Duration:   time.Since(started),
		Metadata: models.Metadata{
			"formats": models.MetaNumber(float64(len(outputs))),
		},
	}); err != nil {
		sm.logger.Warn("failed to record processing usage",
			zap.Int64("project_id", project.ID), zap.Error(err))
	}
	for format := range outputs {
		if err := sm.ledger.Record(usage.Entry{
			UserID:    project.UserID,
			ProjectID: &project.ID,
			Action:    models.ActionExport,
			Endpoint:  "pipeline.export",
			Metadata: models.Metadata{
				"format": models.MetaString(format),
			},
		}); err != nil {
			sm.logger.Warn("failed to record export usage",
				zap.Int64("project_id", project.ID), zap.Error(err))
		}
	}

	sm.publisher.PublishProjectEvent(project.ID, "completed",
		realtime.CompletedPayload(project.ID, outputs))
	sm.logger.Info("project completed",
		zap.Int64("project_id", project.ID),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("formats", len(outputs)))
	return nil
}

// Cancel moves a pending or processing project to cancelled. Terminal
// projects are left untouched: repeating a cancel is a no-op, not an error.
// Cancellation is cooperative; a stage already in flight finishes before the
// run loop honors the flag.
func (sm *StateMachine) Cancel(projectID int64) (*models.Project, error) {
	project, err := sm.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if project.Status.Terminal() {
		return project, nil
	}

	sm.mu.Lock()
	if handle, ok := sm.running[projectID]; ok {
		handle.cancelled = true
	}
	sm.mu.Unlock()

	project.Status = models.StatusCancelled
	project.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	saved, err := sm.store.SaveLifecycle(project, models.StatusPending, models.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if !saved {
		// The run reached a terminal state between our read and the
		// write; report it unchanged, same as cancelling any terminal
		// project.
		return sm.store.GetProject(projectID)
	}
	sm.logger.Info("project cancelled", zap.Int64("project_id", projectID))
	return project, nil
}

// Reset returns a failed or cancelled project to pending so a caller can
// explicitly re-enqueue it. Running or completed projects cannot be reset.
func (sm *StateMachine) Reset(projectID int64) (*models.Project, error) {
	sm.mu.Lock()
	_, isRunning := sm.running[projectID]
	sm.mu.Unlock()
	if isRunning {
		return nil, fmt.Errorf("%w: project %d", apperrors.ErrAlreadyRunning, projectID)
	}

	project, err := sm.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != models.StatusFailed && project.Status != models.StatusCancelled {
		return nil, fmt.Errorf("%w: cannot reset project %d in status %s",
			apperrors.ErrIllegalTransition, projectID, project.Status)
	}

	project.Status = models.StatusPending
	project.CurrentStep = ""
	project.ProgressPercent = 0
	project.OutputFiles = nil
	project.ErrorMessage = sql.NullString{}
	project.CompletedAt = sql.NullTime{}
	saved, err := sm.store.SaveLifecycle(project, models.StatusFailed, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, fmt.Errorf("%w: cannot reset project %d, status changed concurrently",
			apperrors.ErrIllegalTransition, projectID)
	}
	sm.logger.Info("project reset", zap.Int64("project_id", projectID))
	return project, nil
}

// GetStatus returns a read-only snapshot. It never mutates the record and is
// safe to call concurrently with Run.
func (sm *StateMachine) GetStatus(projectID int64) (models.StatusSnapshot, error) {
	project, err := sm.store.GetProject(projectID)
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	snapshot := models.StatusSnapshot{
		ProjectID:       project.ID,
		Status:          project.Status,
		CurrentStep:     project.CurrentStep,
		ProgressPercent: project.ProgressPercent,
		OutputFiles:     project.OutputFiles,
		CreatedAt:       project.CreatedAt,
		UpdatedAt:       project.UpdatedAt,
	}
	if project.ErrorMessage.Valid {
		snapshot.ErrorMessage = project.ErrorMessage.String
	}
	if project.CompletedAt.Valid {
		t := project.CompletedAt.Time
		snapshot.CompletedAt = &t
	}
	return snapshot, nil
}

// acquire registers an exclusive run for the project id.
func (sm *StateMachine) acquire(projectID int64) (*runHandle, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.running[projectID]; ok {
		return nil, fmt.Errorf("%w: project %d", apperrors.ErrAlreadyRunning, projectID)
	}
	handle := &runHandle{}
	sm.running[projectID] = handle
	return handle, nil
}

func (sm *StateMachine) release(projectID int64) {
	sm.mu.Lock()
	delete(sm.running, projectID)
	sm.mu.Unlock()
}

// checkpoint persists stage output and honors a pending cancellation before
// the next stage starts. stop=true means the run must end without touching
// the record further.
func (sm *StateMachine) checkpoint(handle *runHandle, project *models.Project) (stop bool, err error) {
	sm.mu.Lock()
	cancelled := handle.cancelled
	sm.mu.Unlock()
	if cancelled {
		sm.logger.Info("run stopped by cancellation", zap.Int64("project_id", project.ID))
		return true, nil
	}

	saved, err := sm.store.SaveLifecycle(project, models.StatusProcessing)
	if err != nil {
		return true, err
	}
	if !saved {
		return true, nil
	}
	sm.publisher.PublishProjectEvent(project.ID, "status_changed",
		realtime.StatusChangedPayload(project.ID, string(project.Status), project.ProgressPercent))
	return false, nil
}

// fail records a terminal failed state with the stage name and cause. The
// error is not re-raised: callers observe it via GetStatus.
func (sm *StateMachine) fail(project *models.Project, stage string, cause error) error {
	message := fmt.Sprintf("stage %s: %v", stage, cause)
	project.Status = models.StatusFailed
	project.CurrentStep = stage
	project.ErrorMessage = sql.NullString{String: message, Valid: true}
	project.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	saved, err := sm.store.SaveLifecycle(project, models.StatusProcessing)
	if err != nil {
		return err
	}
	if !saved {
		return nil
	}
	sm.publisher.PublishProjectEvent(project.ID, "processing_failed",
		realtime.FailedPayload(project.ID, message))
	sm.logger.Warn("project failed",
		zap.Int64("project_id", project.ID),
		zap.String("stage", stage),
		zap.Error(cause))
	return nil
}

// mirrorOutputs uploads exported files to the bucket mirror and returns
// their public URLs keyed by format.
func (sm *StateMachine) mirrorOutputs(project *models.Project, outputs map[string]string) models.Metadata {
	if sm.mirror == nil {
		return nil
	}
	urls := models.Metadata{}
	for format, path := range outputs {
		data, err := os.ReadFile(path)
		if err != nil {
			sm.logger.Warn("failed to read artifact for mirroring",
				zap.Int64("project_id", project.ID),
				zap.String("format", format),
				zap.Error(err))
			continue
		}
		url, err := sm.mirror.Upload(project.UserID, project.ID, filepath.Base(path), data)
		if err != nil {
			sm.logger.Warn("failed to mirror artifact",
				zap.Int64("project_id", project.ID),
				zap.String("format", format),
				zap.Error(err))
			continue
		}
		urls[format] = models.MetaPath(url)
	}
	return urls
}

func (sm *StateMachine) setMeta(project *models.Project, key string, value models.MetaValue) {
	if project.ProcessingMetadata == nil {
		project.ProcessingMetadata = models.Metadata{}
	}
	project.ProcessingMetadata[key] = value
}
