package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token and stores the caller identity,
// userID and role in the gin context.
func AuthMiddleware(auth *services.SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.AuthenticateRequest(c.Request.Context(), c.Request)
		if err != nil {
			if errors.Is(err, models.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
			return
		}

		c.Set(identityKey, id)
		c.Set("userID", id.UserID)
		c.Set("role", string(id.Role))
		c.Next()
	}
}

// RoleMiddleware only lets the listed canonical roles through.
func RoleMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not found"})
			return
		}

		role, ok := roleVal.(string)
		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid role format"})
			return
		}

		for _, allowed := range allowedRoles {
			if role == string(allowed) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}

func identity(c *gin.Context) models.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(models.Identity)
	return id
}
