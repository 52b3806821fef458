package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/middleware"
	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
)

// currentUser resolves the authenticated user from the request context,
// creating the row on first sight.
func currentUser(c *gin.Context, st store.Store) (*models.User, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return nil, false
	}
	email := c.GetString(middleware.EmailKey)
	user, err := st.EnsureUser(userID, email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to resolve user",
			Message: err.Error(),
		})
		return nil, false
	}
	return user, true
}

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperrors.ErrInactiveAccount):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAlreadyRunning),
		errors.Is(err, apperrors.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
