package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/spotmap-go/pkg/response"
)

// ContextEmail is the gin context key holding the authenticated email
const ContextEmail = "email"

// TokenVerifier resolves a bearer token to the signed-in email
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Auth requires a valid "Authorization: Bearer <token>" header
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		email, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(ContextEmail, email)
		c.Next()
	}
}
