package middleware

import (
	"errors"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
)

// ErrorHandler answers with the last error a handler pushed on the gin
// context. AppErrors keep their code and status; anything else becomes
// INTERNAL_ERROR. Internal causes are logged and never sent to clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.FromContext(c.Request.Context()).With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", requestid.Get(c),
		)

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error", "error", err.Error())
			writeAppError(c, apperrors.ErrInternalServer)
			return
		}

		if appErr.Internal != nil {
			if appErr.StatusCode >= 500 {
				log.Errorw("request failed", "code", appErr.Code, "internal", appErr.Internal.Error())
			} else {
				log.Warnw("request rejected", "code", appErr.Code, "internal", appErr.Internal.Error())
			}
		}
		writeAppError(c, appErr)
	}
}

func writeAppError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error": gin.H{"code": err.Code, "message": err.Message},
	})
}

func abortWithAppError(c *gin.Context, err *apperrors.AppError) {
	writeAppError(c, err)
	c.Abort()
}
