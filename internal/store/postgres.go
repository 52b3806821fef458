package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/models"
)

// Postgres implements Store on a PostgreSQL database via lib/pq.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{db: db}, nil
}

// DB exposes the underlying handle for the migrator.
func (s *Postgres) DB() *sql.DB { return s.db }

func (s *Postgres) EnsureUser(id uuid.UUID, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(`
		INSERT INTO users (id, email, tier, api_key)
		VALUES ($1, $2, 'free', $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING id, email, tier, api_key, is_active, is_verified, created_at, updated_at
	`, id, email, uuid.NewString()).Scan(
		&user.ID, &user.Email, &user.Tier, &user.APIKey,
		&user.IsActive, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &user, nil
}

func (s *Postgres) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(`
		SELECT id, email, tier, api_key, is_active, is_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&user.ID, &user.Email, &user.Tier, &user.APIKey,
		&user.IsActive, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Postgres) SetUserTier(id uuid.UUID, tier models.Tier) error {
	res, err := s.db.Exec(`
		UPDATE users
		SET tier = $1, updated_at = NOW()
		WHERE id = $2
	`, tier, id)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateProject(p *models.Project) (*models.Project, error) {
	metadataJSON, err := json.Marshal(orEmptyMeta(p.ProcessingMetadata))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	outputJSON, err := json.Marshal(orEmptyFiles(p.OutputFiles))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output files: %w", err)
	}

	row := s.db.QueryRow(`
		INSERT INTO projects (
			user_id, original_filename, stored_filename, input_path,
			file_size_mb, file_format, status, current_step, progress_percent,
			output_files, processing_metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, user_id, original_filename, stored_filename, input_path,
			file_size_mb, file_format, status, current_step, progress_percent,
			output_files, processing_metadata, error_message,
			created_at, updated_at, completed_at
	`, p.UserID, p.OriginalFilename, p.StoredFilename, p.InputPath,
		p.FileSizeMB, p.FileFormat, p.Status, p.CurrentStep, p.ProgressPercent,
		outputJSON, metadataJSON)

	created, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

func (s *Postgres) GetProject(id int64) (*models.Project, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, original_filename, stored_filename, input_path,
			file_size_mb, file_format, status, current_step, progress_percent,
			output_files, processing_metadata, error_message,
			created_at, updated_at, completed_at
		FROM projects
		WHERE id = $1
	`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, original_filename, stored_filename, input_path,
			file_size_mb, file_format, status, current_step, progress_percent,
			output_files, processing_metadata, error_message,
			created_at, updated_at, completed_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Postgres) SaveLifecycle(p *models.Project, from ...models.ProjectStatus) (bool, error) {
	metadataJSON, err := json.Marshal(orEmptyMeta(p.ProcessingMetadata))
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	outputJSON, err := json.Marshal(orEmptyFiles(p.OutputFiles))
	if err != nil {
		return false, fmt.Errorf("failed to marshal output files: %w", err)
	}

	states := make([]string, len(from))
	for i, status := range from {
		states[i] = string(status)
	}

	// The status precondition is part of the UPDATE itself so a concurrent
	// writer can never clobber a state it did not read.
	err = s.db.QueryRow(`
		UPDATE projects
		SET status = $1, current_step = $2, progress_percent = $3,
			output_files = $4, processing_metadata = $5, error_message = $6,
			completed_at = $7, updated_at = NOW()
		WHERE id = $8 AND status = ANY($9)
		RETURNING updated_at
	`, p.Status, p.CurrentStep, p.ProgressPercent,
		outputJSON, metadataJSON, p.ErrorMessage, p.CompletedAt, p.ID,
		pq.Array(states),
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetProject(p.ID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save project lifecycle: %w", err)
	}
	return true, nil
}

func (s *Postgres) AppendUsage(e *models.UsageLogEntry) error {
	metadataJSON, err := json.Marshal(orEmptyMeta(e.RequestMetadata))
	if err != nil {
		return fmt.Errorf("failed to marshal request metadata: %w", err)
	}

	err = s.db.QueryRow(`
		INSERT INTO usage_log (user_id, project_id, action, endpoint, file_size_mb, duration_ms, request_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.UserID, e.ProjectID, e.Action, e.Endpoint, e.FileSizeMB, e.DurationMS, metadataJSON,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append usage entry: %w", err)
	}
	return nil
}

func (s *Postgres) SumForPeriod(userID uuid.UUID, action models.ActionType, since time.Time) (int64, float64, error) {
	var count int64
	var totalMB float64
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(file_size_mb), 0)
		FROM usage_log
		WHERE user_id = $1 AND action = $2 AND created_at >= $3
	`, userID, action, since).Scan(&count, &totalMB)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return count, totalMB, nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var outputJSON, metadataJSON []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.OriginalFilename, &p.StoredFilename, &p.InputPath,
		&p.FileSizeMB, &p.FileFormat, &p.Status, &p.CurrentStep, &p.ProgressPercent,
		&outputJSON, &metadataJSON, &p.ErrorMessage,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(outputJSON, &p.OutputFiles); err != nil {
		return nil, fmt.Errorf("failed to decode output files: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &p.ProcessingMetadata); err != nil {
		return nil, fmt.Errorf("failed to decode processing metadata: %w", err)
	}
	return &p, nil
}

func orEmptyMeta(m models.Metadata) models.Metadata {
	if m == nil {
		return models.Metadata{}
	}
	return m
}

func orEmptyFiles(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
