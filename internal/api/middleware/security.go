package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders sets the response hardening headers. No Content-Security-Policy
// is sent because the dashboard frames the flow editor and loads xterm from a CDN.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}
