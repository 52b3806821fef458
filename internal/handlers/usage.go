package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

type UsageHandler struct {
	store  store.Store
	ledger *usage.Ledger
}

func NewUsageHandler(st store.Store, ledger *usage.Ledger) *UsageHandler {
	return &UsageHandler{store: st, ledger: ledger}
}

// GetUsage returns the authenticated user's aggregate usage for the current
// billing period.
func (h *UsageHandler) GetUsage(c *gin.Context) {
	user, ok := currentUser(c, h.store)
	if !ok {
		return
	}
	summary, err := h.ledger.Summary(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to compute usage",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
