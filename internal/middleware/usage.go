package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"planscape-backend/internal/models"
	"planscape-backend/internal/usage"
)

// UsageAccounting appends an api_call usage entry for every authenticated
// request. The accounting boundary is policy: the middleware is only
// installed when USAGE_COUNT_API_CALLS is enabled.
func UsageAccounting(ledger *usage.Ledger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		userIDStr, exists := c.Get(UserIDKey)
		if !exists {
			return
		}
		userID, err := uuid.Parse(userIDStr.(string))
		if err != nil {
			return
		}

		if err := ledger.Record(usage.Entry{
			UserID:   userID,
			Action:   models.ActionAPICall,
			Endpoint: c.FullPath(),
			Duration: time.Since(start),
			Metadata: models.Metadata{
				"method": models.MetaString(c.Request.Method),
				"status": models.MetaNumber(float64(c.Writer.Status())),
			},
		}); err != nil {
			logger.Warn("failed to record api call usage", zap.Error(err))
		}
	}
}
