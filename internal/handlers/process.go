package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"planscape-backend/internal/geometry"
	"planscape-backend/internal/models"
	"planscape-backend/internal/pipeline"
	"planscape-backend/internal/store"
)

type ProcessHandler struct {
	store store.Store
	pool  *pipeline.WorkerPool
}

func NewProcessHandler(st store.Store, pool *pipeline.WorkerPool) *ProcessHandler {
	return &ProcessHandler{store: st, pool: pool}
}

// Process godoc
// @Summary     Start pipeline processing for a project
// @Description Enqueues the project for geometry extraction, scaling, 3D construction, and export. Poll /status for progress.
// @Tags        process
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path int true "Project ID"
// @Param       request body models.ProcessRequest false "Processing options"
// @Success     202 {object} models.ProcessResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /projects/{project_id}/process [post]
func (h *ProcessHandler) Process(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}
	project, err := h.store.GetProject(projectID)
	if err != nil || project.UserID != user.ID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}
	if project.Status != models.StatusPending {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "project not pending",
			Message: "only pending projects can be processed; reset a failed project first",
		})
		return
	}

	var req models.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	opts := pipeline.RunOptions{Formats: req.Formats}
	if req.ReferencePixelLength != 0 || req.ReferenceRealLength != 0 {
		opts.Reference = &geometry.ScaleReference{
			PixelLength: req.ReferencePixelLength,
			RealLength:  req.ReferenceRealLength,
		}
	}

	if err := h.pool.Enqueue(pipeline.Task{ProjectID: projectID, Options: opts}); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "failed to enqueue processing",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, models.ProcessResponse{
		ProjectID: projectID,
		Status:    project.Status,
	})
}
