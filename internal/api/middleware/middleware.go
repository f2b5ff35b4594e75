// Package middleware holds the HTTP control surface's cross-cutting Gin
// middleware: CORS (grounded on the teacher's internal/api/middleware CORS
// usage referenced from its routes table) and an optional bearer-token
// auth gate built on pkg/auth.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tripleyak/dev-browser-studio/pkg/auth"
)

// CORS allows any origin to call the control surface. The server is meant
// to be driven by a local thin client (spec §1's "Out of scope" list), not
// exposed to arbitrary third-party browser pages, so a permissive policy
// matches the teacher's own CORSMiddleware rather than a per-deployment
// allowlist.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireBearerToken gates every request behind a valid operator token
// minted via pkg/auth, when enabled is true. Disabled by default so the
// documented HTTP surface (spec §6) behaves exactly as specified out of
// the box.
func RequireBearerToken(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if _, err := auth.ParseToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}
