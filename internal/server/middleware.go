package server

import (
	"strings"
	"time"

	"application-intake/internal/common/auth"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latencyMs": time.Since(start).Milliseconds(),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request failed", fields)
		case status >= 400:
			log.Warn("request rejected", fields)
		default:
			log.Debug("request handled", fields)
		}
	}
}

// bearerAuth decodes the Authorization header and stores the identity on
// the context.
func bearerAuth(decoder auth.TokenDecoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(c, errors.NewAuthenticationError("missing bearer token"))
			return
		}
		identity, err := decoder.Decode(c.Request.Context(), header)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// authorize rejects requests whose token belongs to another user. Requests
// that passed no authentication are allowed.
func authorize(c *gin.Context, userID string) bool {
	value, ok := c.Get(identityKey)
	if !ok {
		return true
	}
	identity := value.(models.Identity)
	if identity.UserID != userID {
		writeError(c, errors.NewForbiddenError("token does not belong to user "+userID))
		return false
	}
	return true
}
