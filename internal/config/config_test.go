package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2.5, cfg.WallHeightM)
	assert.Equal(t, []string{"obj", "stl"}, cfg.ExportFormats)
	assert.Equal(t, []string{"jpg", "jpeg", "png"}, cfg.AllowedFormats)
	assert.Equal(t, int64(5), cfg.Quota.FreeUploads)
	assert.False(t, cfg.CountAPICalls)
}

func TestLoad_ListsAreNormalized(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("EXPORT_FORMATS", " OBJ, Stl ,gltf,")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"obj", "stl", "gltf"}, cfg.ExportFormats)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			JWTSecret:     "s",
			Workers:       1,
			WallHeightM:   2.5,
			ExportFormats: []string{"obj"},
			MaxUploadMB:   16,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.WallHeightM = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ExportFormats = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxUploadMB = 0
	assert.Error(t, cfg.Validate())
}
