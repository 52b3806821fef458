package models

import "time"

type ProjectResponse struct {
	ProjectID        int64             `json:"project_id"`
	Status           ProjectStatus     `json:"status"`
	CurrentStep      string            `json:"current_step,omitempty"`
	ProgressPercent  int               `json:"progress_percent"`
	OriginalFilename string            `json:"original_filename"`
	FileFormat       string            `json:"file_format"`
	FileSizeMB       float64           `json:"file_size_mb"`
	OutputFiles      map[string]string `json:"output_files,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type StatusResponse struct {
	ProjectID       int64             `json:"project_id"`
	Status          ProjectStatus     `json:"status"`
	CurrentStep     string            `json:"current_step,omitempty"`
	ProgressPercent int               `json:"progress_percent"`
	OutputFiles     map[string]string `json:"output_files,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

type ProcessResponse struct {
	ProjectID int64         `json:"project_id"`
	Status    ProjectStatus `json:"status"`
}

type FilesResponse struct {
	ProjectID int64             `json:"project_id"`
	Files     map[string]string `json:"files"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// NewProjectResponse converts a stored project into the wire shape.
func NewProjectResponse(p *Project) ProjectResponse {
	resp := ProjectResponse{
		ProjectID:        p.ID,
		Status:           p.Status,
		CurrentStep:      p.CurrentStep,
		ProgressPercent:  p.ProgressPercent,
		OriginalFilename: p.OriginalFilename,
		FileFormat:       p.FileFormat,
		FileSizeMB:       p.FileSizeMB,
		OutputFiles:      p.OutputFiles,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.ErrorMessage.Valid {
		resp.ErrorMessage = p.ErrorMessage.String
	}
	if p.CompletedAt.Valid {
		t := p.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

// SnapshotResponse converts a pipeline snapshot into the wire shape.
func SnapshotResponse(s StatusSnapshot) StatusResponse {
	return StatusResponse{
		ProjectID:       s.ProjectID,
		Status:          s.Status,
		CurrentStep:     s.CurrentStep,
		ProgressPercent: s.ProgressPercent,
		OutputFiles:     s.OutputFiles,
		ErrorMessage:    s.ErrorMessage,
		UpdatedAt:       s.UpdatedAt,
		CompletedAt:     s.CompletedAt,
	}
}
