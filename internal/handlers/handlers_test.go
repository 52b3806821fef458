package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planscape-backend/internal/artifacts"
	"planscape-backend/internal/builder"
	"planscape-backend/internal/config"
	"planscape-backend/internal/extractor"
	"planscape-backend/internal/geometry"
	"planscape-backend/internal/handlers"
	"planscape-backend/internal/middleware"
	"planscape-backend/internal/models"
	"planscape-backend/internal/pipeline"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

const testSecret = "test-secret"

type testAPI struct {
	router *gin.Engine
	store  *store.Mem
	ledger *usage.Ledger
}

func newAPI(t *testing.T, ext extractor.Extractor) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:      testSecret,
		UploadDir:      t.TempDir(),
		ArtifactDir:    t.TempDir(),
		WallHeightM:    2.5,
		WallThicknessM: 0.1,
		ExportFormats:  []string{"obj"},
		MaxUploadMB:    16,
		AllowedFormats: []string{"jpg", "jpeg", "png"},
		Quota: config.QuotaConfig{
			FreeUploads:   5,
			FreeMaxFileMB: 4,
		},
	}

	st := store.NewMem()
	art, err := artifacts.NewDiskStore(cfg.ArtifactDir)
	require.NoError(t, err)
	ledger := usage.NewLedger(st)
	gate := usage.NewGate(ledger, cfg.Quota)
	sm := pipeline.NewStateMachine(st, gate, ledger, ext,
		builder.New(cfg.WallHeightM, cfg.WallThicknessM), art, nil,
		cfg.ExportFormats, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool := pipeline.NewWorkerPool(sm, 8, zap.NewNop())
	pool.Start(ctx, 2)

	projects := handlers.NewProjectsHandler(st, sm, cfg, zap.NewNop())
	process := handlers.NewProcessHandler(st, pool)
	status := handlers.NewStatusHandler(st, sm)
	files := handlers.NewFilesHandler(st, ledger, zap.NewNop())
	usageHandler := handlers.NewUsageHandler(st, ledger)

	router := gin.New()
	router.GET("/health", handlers.HealthHandler)
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	api.POST("/projects", projects.Upload)
	api.GET("/projects", projects.ListProjects)
	api.GET("/projects/:project_id", projects.GetProject)
	api.POST("/projects/:project_id/cancel", projects.CancelProject)
	api.POST("/projects/:project_id/reset", projects.ResetProject)
	api.POST("/projects/:project_id/process", process.Process)
	api.GET("/projects/:project_id/status", status.GetStatus)
	api.GET("/projects/:project_id/files", files.GetFiles)
	api.GET("/projects/:project_id/files/:format", files.Download)
	api.GET("/usage", usageHandler.GetUsage)

	return &testAPI{router: router, store: st, ledger: ledger}
}

func stubExtractor() *extractor.Stub {
	return &extractor.Stub{Geometry: &geometry.RawGeometry{
		Rooms: []geometry.Room{{
			Label:   "kitchen",
			Outline: []geometry.Point{{X: 0, Y: 0}, {X: 120, Y: 0}, {X: 120, Y: 80}, {X: 0, Y: 80}},
		}},
		Reference: &geometry.ScaleReference{PixelLength: 120, RealLength: 3.0},
	}}
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "test@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (a *testAPI) do(t *testing.T, method, path, auth string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func multipartImage(t *testing.T, field, filename string, size int) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0x89}, size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func (a *testAPI) upload(t *testing.T, auth string) models.ProjectResponse {
	t.Helper()
	body, contentType := multipartImage(t, "image", "plan.png", 1024)
	w := a.do(t, http.MethodPost, "/api/v1/projects", auth, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	api := newAPI(t, stubExtractor())
	w := api.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUpload_CreatesPendingProject(t *testing.T) {
	api := newAPI(t, stubExtractor())
	resp := api.upload(t, bearerToken(t, uuid.New()))

	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Zero(t, resp.ProgressPercent)
	assert.Equal(t, "plan.png", resp.OriginalFilename)
	assert.Equal(t, "png", resp.FileFormat)
}

func TestUpload_RequiresAuth(t *testing.T) {
	api := newAPI(t, stubExtractor())
	body, contentType := multipartImage(t, "image", "plan.png", 1024)
	w := api.do(t, http.MethodPost, "/api/v1/projects", "", body, contentType)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpload_RejectsUnsupportedFormat(t *testing.T) {
	api := newAPI(t, stubExtractor())
	body, contentType := multipartImage(t, "image", "plan.gif", 1024)
	w := api.do(t, http.MethodPost, "/api/v1/projects", bearerToken(t, uuid.New()), body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_RejectsMissingFile(t *testing.T) {
	api := newAPI(t, stubExtractor())
	body, contentType := multipartImage(t, "document", "plan.png", 1024)
	w := api.do(t, http.MethodPost, "/api/v1/projects", bearerToken(t, uuid.New()), body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_QuotaDenied(t *testing.T) {
	api := newAPI(t, stubExtractor())
	userID := uuid.New()
	auth := bearerToken(t, userID)
	for i := 0; i < 5; i++ {
		api.upload(t, auth)
	}

	body, contentType := multipartImage(t, "image", "plan.png", 1024)
	w := api.do(t, http.MethodPost, "/api/v1/projects", auth, body, contentType)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGetProject_ForeignProjectIsNotFound(t *testing.T) {
	api := newAPI(t, stubExtractor())
	project := api.upload(t, bearerToken(t, uuid.New()))

	w := api.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/projects/%d", project.ProjectID),
		bearerToken(t, uuid.New()), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcess_CompletesAndServesFiles(t *testing.T) {
	api := newAPI(t, stubExtractor())
	auth := bearerToken(t, uuid.New())
	project := api.upload(t, auth)

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/process", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	statusPath := fmt.Sprintf("/api/v1/projects/%d/status", project.ProjectID)
	var status models.StatusResponse
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = api.do(t, http.MethodGet, statusPath, auth, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		if status.Status.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, models.StatusCompleted, status.Status, "error: %s", status.ErrorMessage)
	assert.Equal(t, 100, status.ProgressPercent)
	require.Contains(t, status.OutputFiles, "obj")

	w = api.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/projects/%d/files", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var files models.FilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Contains(t, files.Files, "obj")

	w = api.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/projects/%d/files/obj", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "o kitchen")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "model.obj")
}

func TestProcess_NonPendingProjectConflicts(t *testing.T) {
	api := newAPI(t, stubExtractor())
	auth := bearerToken(t, uuid.New())
	project := api.upload(t, auth)

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/cancel", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/process", project.ProjectID), auth, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelThenReset(t *testing.T) {
	api := newAPI(t, stubExtractor())
	auth := bearerToken(t, uuid.New())
	project := api.upload(t, auth)

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/cancel", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cancelled models.ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	// Cancel is idempotent over HTTP as well.
	w = api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/cancel", project.ProjectID), auth, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/reset", project.ProjectID), auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var reset models.ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.Equal(t, models.StatusPending, reset.Status)
	assert.Zero(t, reset.ProgressPercent)
	assert.Empty(t, reset.ErrorMessage)
}

func TestReset_PendingProjectConflicts(t *testing.T) {
	api := newAPI(t, stubExtractor())
	auth := bearerToken(t, uuid.New())
	project := api.upload(t, auth)

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%d/reset", project.ProjectID), auth, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListProjects_OnlyOwn(t *testing.T) {
	api := newAPI(t, stubExtractor())
	alice := bearerToken(t, uuid.New())
	bob := bearerToken(t, uuid.New())
	api.upload(t, alice)
	api.upload(t, alice)
	api.upload(t, bob)

	w := api.do(t, http.MethodGet, "/api/v1/projects", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ProjectListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Projects, 2)
}

func TestGetUsage(t *testing.T) {
	api := newAPI(t, stubExtractor())
	auth := bearerToken(t, uuid.New())
	api.upload(t, auth)
	api.upload(t, auth)

	w := api.do(t, http.MethodGet, "/api/v1/usage", auth, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.UsageSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(2), summary.Uploads)
}
