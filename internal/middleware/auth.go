package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/models"
)

// AdminAuth guards the import and job endpoints with a static bearer token.
// An empty configured token means development mode: requests pass through
// with a fixed identity so local work needs no credentials.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Set("user_id", userIdentity(c, "dev-admin"))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "Authorization header with bearer token required")
			return
		}
		presented := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			abortUnauthorized(c, "Invalid API token")
			return
		}

		c.Set("user_id", userIdentity(c, "admin"))
		c.Next()
	}
}

func userIdentity(c *gin.Context, fallback string) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return fallback
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: "UNAUTHORIZED", Message: message},
	})
	c.Abort()
}
