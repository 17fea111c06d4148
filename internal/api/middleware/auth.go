package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muzammelhussain/krishi-link-server/internal/auth"
)

const (
	// ContextKeyUserEmail holds the verified caller email in the Gin context.
	ContextKeyUserEmail = "userEmail"
	// ContextKeyUserName holds the caller's display name, when the token carries one.
	ContextKeyUserName = "userName"
)

// AuthMiddleware creates a Gin middleware for JWT verification. Token issuance
// is external; this only checks the signature and extracts the verified email.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}
		if claims.Email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token carries no email claim"})
			return
		}

		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyUserName, claims.Name)

		c.Next()
	}
}

// CallerEmail returns the verified email set by AuthMiddleware.
func CallerEmail(c *gin.Context) string {
	return c.GetString(ContextKeyUserEmail)
}
