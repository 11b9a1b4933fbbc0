package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps /api request bodies.
const MaxBodySize = 1 * 1024 * 1024 // 1MB

// BodyLimit rejects requests whose declared length exceeds limit and caps
// the body reader for the rest, so oversized chunked uploads fail to bind.
func BodyLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = MaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
