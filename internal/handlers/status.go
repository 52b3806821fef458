package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"planscape-backend/internal/models"
	"planscape-backend/internal/pipeline"
	"planscape-backend/internal/store"
)

type StatusHandler struct {
	store store.Store
	sm    *pipeline.StateMachine
}

func NewStatusHandler(st store.Store, sm *pipeline.StateMachine) *StatusHandler {
	return &StatusHandler{store: st, sm: sm}
}

// GetStatus returns the polling contract: status, current step, progress,
// output files, error message, and timestamps.
func (h *StatusHandler) GetStatus(c *gin.Context) {
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

	snapshot, err := h.sm.GetStatus(projectID)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{
			Error:   "failed to get status",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.SnapshotResponse(snapshot))
}
