package middleware

import (
	"strings"

	"github.com/Shotlin/shotlin-backend/internal/pkg/jwt"
	"github.com/Shotlin/shotlin-backend/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const ContextKeySubject = "auth_subject"

// Auth returns a middleware that enforces a dashboard JWT obtained from the
// token endpoint.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
