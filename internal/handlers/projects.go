package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"planscape-backend/internal/config"
	"planscape-backend/internal/models"
	"planscape-backend/internal/pipeline"
	"planscape-backend/internal/store"
)

type ProjectsHandler struct {
	store  store.Store
	sm     *pipeline.StateMachine
	cfg    *config.Config
	logger *zap.Logger
}

func NewProjectsHandler(st store.Store, sm *pipeline.StateMachine, cfg *config.Config, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: st, sm: sm, cfg: cfg, logger: logger}
}

// Upload godoc
// @Summary     Upload a floor-plan image and create a project
// @Description Accepts one floor-plan image (jpg/jpeg/png, up to the configured size limit), stores it, and creates a pending project.
// @Tags        projects
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       image formData file true "Floor-plan image"
// @Success     201 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}

	fileHeader, err := pickUploadFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no file uploaded",
			Message: err.Error(),
		})
		return
	}

	sizeMB := float64(fileHeader.Size) / (1 << 20)
	if sizeMB > h.cfg.MaxUploadMB {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:   "file too large",
			Message: fmt.Sprintf("%.1f MB exceeds the %.0f MB upload limit", sizeMB, h.cfg.MaxUploadMB),
		})
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !formatAllowed(format, h.cfg.AllowedFormats) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported file format",
			Message: fmt.Sprintf("format %q is not one of %v", format, h.cfg.AllowedFormats),
		})
		return
	}

	storedFilename := fmt.Sprintf("%s.%s", uuid.NewString(), format)
	inputPath := filepath.Join(h.cfg.UploadDir, storedFilename)
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to prepare upload directory",
			Message: err.Error(),
		})
		return
	}
	if err := c.SaveUploadedFile(fileHeader, inputPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to store upload",
			Message: err.Error(),
		})
		return
	}

	project, err := h.sm.Create(user, models.InputDescriptor{
		OriginalFilename: fileHeader.Filename,
		StoredFilename:   storedFilename,
		InputPath:        inputPath,
		FileSizeMB:       sizeMB,
		FileFormat:       format,
	})
	if err != nil {
		os.Remove(inputPath)
		c.JSON(statusForError(err), models.ErrorResponse{
			Error:   "project not admitted",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}

func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	projects, err := h.store.ListProjects(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list projects",
			Message: err.Error(),
		})
		return
	}
	resp := models.ProjectListResponse{Projects: make([]models.ProjectResponse, 0, len(projects))}
	for i := range projects {
		resp.Projects = append(resp.Projects, models.NewProjectResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	project, ok := h.ownedProject(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// CancelProject moves a pending or processing project to cancelled. A
// repeated cancel returns the same terminal state.
func (h *ProjectsHandler) CancelProject(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	project, ok := h.ownedProject(c, user.ID)
	if !ok {
		return
	}
	cancelled, err := h.sm.Cancel(project.ID)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{
			Error:   "failed to cancel project",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(cancelled))
}

// ResetProject returns a failed or cancelled project to pending so it can be
// re-enqueued.
func (h *ProjectsHandler) ResetProject(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	project, ok := h.ownedProject(c, user.ID)
	if !ok {
		return
	}
	reset, err := h.sm.Reset(project.ID)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{
			Error:   "failed to reset project",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(reset))
}

// ownedProject loads the :project_id path parameter and enforces ownership.
// Foreign projects are reported as not found.
func (h *ProjectsHandler) ownedProject(c *gin.Context, userID uuid.UUID) (*models.Project, bool) {
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return nil, false
	}
	project, err := h.store.GetProject(projectID)
	if err != nil || project.UserID != userID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return nil, false
	}
	return project, true
}

func pickUploadFile(c *gin.Context) (*multipart.FileHeader, error) {
	for _, field := range []string{"image", "file", "floorplan"} {
		if fh, err := c.FormFile(field); err == nil {
			return fh, nil
		}
	}
	return nil, fmt.Errorf("provide the image under one of these field names: image, file, floorplan")
}

func formatAllowed(format string, allowed []string) bool {
	for _, a := range allowed {
		if format == a {
			return true
		}
	}
	return false
}
