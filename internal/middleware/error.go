package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/logger"
)

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into consistent JSON error responses. AppErrors are returned with
// their code and message; anything else becomes a generic internal error so
// no details leak.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// The last error is the most relevant in a middleware chain.
		err := c.Errors.Last().Err
		log := logger.Named("http")

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil {
			fields := []interface{}{
				"code", appErr.Code,
				"kind", appErr.Kind,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			}
			if appErr.Kind == apperrors.KindPersistence {
				log.Errorw("app error", fields...)
			} else {
				log.Warnw("app error", fields...)
			}
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
