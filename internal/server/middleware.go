package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

const (
	errMissingBearer = "missing_bearer"
	errInvalidBearer = "invalid_bearer"
)

// requireBearer rejects requests whose Authorization header does not carry the configured token.
// An empty configured token rejects everything.
func requireBearer(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, errMissingBearer)

			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			abort(c, http.StatusUnauthorized, errMissingBearer)

			return
		}

		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			abort(c, http.StatusUnauthorized, errInvalidBearer)

			return
		}

		c.Next()
	}
}

func requestLogger(logger logr.Logger, clock clockwork.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := clock.Now()

		c.Next()

		status := c.Writer.Status()
		level := 2
		if status >= http.StatusInternalServerError {
			level = 0
		}

		logger.V(level).Info("Request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", clock.Since(start).String(),
			"errors", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func abort(c *gin.Context, status int, reason string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": reason})
}
