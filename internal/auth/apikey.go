package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// adminCtxKey is the Gin context key used to store the authenticated admin name.
const adminCtxKey = "admin_name"

// APIKeyMiddleware guards admin routes by mapping X-API-Key → admin name.
// With no keys configured every request passes.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		name, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(adminCtxKey, name)
		c.Next()
	}
}

// AdminName returns the authenticated admin from the request context.
func AdminName(c *gin.Context) string {
	v, _ := c.Get(adminCtxKey)
	s, _ := v.(string)
	return s
}
