package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planscape-backend/internal/middleware"
	"planscape-backend/internal/models"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

func TestUsageAccounting_RecordsAPICall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMem()
	ledger := usage.NewLedger(st)
	userID := uuid.New()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
	})
	r.Use(middleware.UsageAccounting(ledger, zap.NewNop()))
	r.GET("/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects", nil))
	require.Equal(t, http.StatusOK, w.Code)

	count, _, err := st.SumForPeriod(userID, models.ActionAPICall, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUsageAccounting_SkipsUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMem()
	ledger := usage.NewLedger(st)

	r := gin.New()
	r.Use(middleware.UsageAccounting(ledger, zap.NewNop()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	count, _, err := st.SumForPeriod(uuid.Nil, models.ActionAPICall, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
}
