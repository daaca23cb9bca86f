package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/middleware/requestid"
)

// MutationLog records one structured entry for every successful roster mutation
// and a warning for mutations the store rejected. Requests refused before they
// reach the store (validation, busy record) are not logged here.
// The resource id is read from the :id route parameter when present.
func MutationLog(logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mutations")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		var rejection error
		if status >= 400 {
			last := c.Errors.Last()
			if last == nil || !appErrors.IsStoreError(last.Err) {
				return
			}
			rejection = last.Err
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Int("status", status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("resource_id", id))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if rejection != nil {
			fields = append(fields, zap.String("code", appErrors.FromError(rejection).Code), zap.Error(rejection))
			logger.Warn("roster_mutation_rejected", fields...)
			return
		}
		logger.Info("roster_mutation", fields...)
	}
}
