package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

type FilesHandler struct {
	store  store.Store
	ledger *usage.Ledger
	logger *zap.Logger
}

func NewFilesHandler(st store.Store, ledger *usage.Ledger, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{store: st, ledger: ledger, logger: logger}
}

// GetFiles lists the exported output files of a project by format.
func (h *FilesHandler) GetFiles(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	project, ok := h.ownedProject(c, user)
	if !ok {
		return
	}
	files := project.OutputFiles
	if files == nil {
		files = map[string]string{}
	}
	c.JSON(http.StatusOK, models.FilesResponse{ProjectID: project.ID, Files: files})
}

// Download serves one exported file and records a download usage entry.
func (h *FilesHandler) Download(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	project, ok := h.ownedProject(c, user)
	if !ok {
		return
	}

	format := c.Param("format")
	path, ok := project.OutputFiles[format]
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no output for format " + format})
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "output file missing"})
		return
	}

	if err := h.ledger.Record(usage.Entry{
		UserID:     user.ID,
		ProjectID:  &project.ID,
		Action:     models.ActionDownload,
		Endpoint:   "files.download",
		FileSizeMB: float64(info.Size()) / (1 << 20),
		Metadata: models.Metadata{
			"format": models.MetaString(format),
		},
	}); err != nil {
		h.logger.Warn("failed to record download usage",
			zap.Int64("project_id", project.ID), zap.Error(err))
	}

	c.FileAttachment(path, "model."+format)
}

func (h *FilesHandler) ownedProject(c *gin.Context, user *models.User) (*models.Project, bool) {
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return nil, false
	}
	project, err := h.store.GetProject(projectID)
	if err != nil || project.UserID != user.ID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return nil, false
	}
	return project, true
}
