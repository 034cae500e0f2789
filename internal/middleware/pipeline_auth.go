package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
)

// PipelineSourceKey is the gin context key naming the generator that called a
// pipeline endpoint.
const PipelineSourceKey = "pipelineSource"

const defaultPipelineSource = "recurring-generator"

// PipelineAuthMiddleware guards the endpoints called by the recurring-payment
// generator. Callers present the shared key in X-API-Key and may name
// themselves in X-Pipeline-Source.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithAppError(c, apperrors.ErrPipelineNotConfigured)
			return
		}

		source := c.GetHeader("X-Pipeline-Source")
		if source == "" {
			source = defaultPipelineSource
		}

		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			logger.FromContext(c.Request.Context()).Warnw("rejected pipeline call",
				"source", source,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			abortWithAppError(c, apperrors.ErrInvalidAPIKey)
			return
		}

		c.Set(PipelineSourceKey, source)
		c.Next()
	}
}
