// middlewares/auth_middleware.go
package middlewares

import (
	"log"
	"net/http"
	"strings"

	"macromap/utils"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards maintenance routes with an admin bearer token.
// An empty secret disables the check.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			return
		}

		subject, err := utils.ParseAdminJWT(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Printf("[AUTH] rejected admin token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		c.Set("adminSubject", subject)
		c.Next()
	}
}
