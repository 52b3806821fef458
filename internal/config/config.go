package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for planscape-backend. Values come from
// environment variables with defaults suitable for local development.
// Secrets (JWT secret, database URL, storage keys) have no defaults.
type Config struct {
	// Server
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	// Database. When empty the server falls back to the in-memory store
	// (useful for local development; nothing survives a restart).
	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	// Extractor (floor-plan segmentation service)
	ExtractorBaseURL string `env:"EXTRACTOR_BASE_URL" env-default:"http://localhost:9000/v1/"`
	ExtractorAPIKey  string `env:"EXTRACTOR_API_KEY" env-default:""`

	// Storage
	UploadDir   string `env:"UPLOAD_DIR" env-default:"data/uploads"`
	ArtifactDir string `env:"ARTIFACT_DIR" env-default:"data/artifacts"`

	// Optional Supabase mirror for exported artifacts and realtime events.
	SupabaseURL           string `env:"SUPABASE_URL" env-default:""`
	SupabaseKey           string `env:"SUPABASE_KEY" env-default:""`
	SupabaseStorageBucket string `env:"SUPABASE_STORAGE_BUCKET" env-default:"models"`

	// Pipeline
	Workers          int     `env:"PIPELINE_WORKERS" env-default:"4"`
	WallHeightM      float64 `env:"WALL_HEIGHT_M" env-default:"2.5"`
	WallThicknessM   float64 `env:"WALL_THICKNESS_M" env-default:"0.1"`
	ExportFormatsStr string  `env:"EXPORT_FORMATS" env-default:"obj,stl"`
	ExportFormats    []string

	// Upload validation
	MaxUploadMB       float64 `env:"MAX_UPLOAD_MB" env-default:"16"`
	AllowedFormatsStr string  `env:"ALLOWED_FORMATS" env-default:"jpg,jpeg,png"`
	AllowedFormats    []string

	// Quota
	Quota QuotaConfig

	// Usage accounting policy: when true, every authenticated request also
	// appends an api_call entry to the usage log.
	CountAPICalls bool `env:"USAGE_COUNT_API_CALLS" env-default:"false"`
}

// QuotaConfig holds per-tier limits for the current billing period. Caps are
// configuration, not logic: a tier's cap of 0 means unlimited.
type QuotaConfig struct {
	FreeUploads       int64   `env:"QUOTA_FREE_UPLOADS" env-default:"5"`
	FreeMaxFileMB     float64 `env:"QUOTA_FREE_MAX_FILE_MB" env-default:"4"`
	ProUploads        int64   `env:"QUOTA_PRO_UPLOADS" env-default:"100"`
	ProMaxFileMB      float64 `env:"QUOTA_PRO_MAX_FILE_MB" env-default:"16"`
	EnterpriseUploads int64   `env:"QUOTA_ENTERPRISE_UPLOADS" env-default:"0"`
	EnterpriseMaxMB   float64 `env:"QUOTA_ENTERPRISE_MAX_FILE_MB" env-default:"16"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.ExportFormats = splitList(cfg.ExportFormatsStr)
	cfg.AllowedFormats = splitList(cfg.AllowedFormatsStr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if c.WallHeightM <= 0 {
		return fmt.Errorf("WALL_HEIGHT_M must be positive")
	}
	if len(c.ExportFormats) == 0 {
		return fmt.Errorf("EXPORT_FORMATS must list at least one format")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
