package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyHeader carries the shared secret on /api requests.
const APIKeyHeader = "X-API-Key"

// KeyMatches reports whether presented equals the configured key. An empty
// configured key matches nothing.
func KeyMatches(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// APIKey rejects requests whose X-API-Key header does not match key.
func APIKey(key string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !KeyMatches(key, c.GetHeader(APIKeyHeader)) {
			logger.Debug("rejected api request",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
