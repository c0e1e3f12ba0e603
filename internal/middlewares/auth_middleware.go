package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"excelsql/internal/utils"
)

// Authenticate requires a Bearer access token signed with secret.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Missing Authorization header"})
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid Authorization format"})
			return
		}

		claims, err := utils.VerifyJWT(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid or expired token"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}
