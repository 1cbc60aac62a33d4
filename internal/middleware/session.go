package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/session"
)

// Context keys set by SessionAuth.
const (
	ContextUserID  = "userID"
	ContextEmail   = "email"
	ContextSession = "session"
)

// SessionToucher validates a session id and refreshes its activity.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string) (*session.Session, error)
}

// SessionID extracts the session id from the cookie, falling back to an
// "Authorization: Bearer <id>" header.
func SessionID(c *gin.Context, cookieName string) string {
	if id, err := c.Cookie(cookieName); err == nil && id != "" {
		return id
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// SessionAuth rejects requests without a live session and puts the session
// and its user in the context. An expired session also clears the cookie.
func SessionAuth(auth SessionToucher, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := auth.Touch(c.Request.Context(), SessionID(c, cookieName))
		if err != nil {
			if errors.Is(err, apperrors.ErrSessionExpired) {
				c.SetCookie(cookieName, "", -1, "/", "", false, true)
			}
			abortWithError(c, err)
			return
		}

		c.Set(ContextUserID, sess.UserID)
		c.Set(ContextEmail, sess.Email)
		c.Set(ContextSession, sess)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.ErrInternalServer
	}
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
