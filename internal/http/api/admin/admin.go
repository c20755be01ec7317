// Package admin exposes the administrative JSON API.
package admin

import (
	"net/http"
	"strings"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the admin API under /api/admin. All routes
// require a session JWT belonging to an admin account.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/api/admin")
	group.Use(AdminAuthMiddleware(db, jwtCfg))

	userHandler := NewUserHandler(db)
	group.GET("/users", userHandler.List)
	group.GET("/users/:id", userHandler.Get)
	group.POST("/users/:id/credits", userHandler.AdjustCredits)

	packageHandler := NewPackageHandler(db)
	group.GET("/packages", packageHandler.List)
	group.POST("/packages", packageHandler.Create)
	group.PATCH("/packages/:id", packageHandler.Update)
	group.DELETE("/packages/:id", packageHandler.Deactivate)

	statsHandler := NewStatsHandler(db)
	group.GET("/stats", statsHandler.Overview)
}

// AdminAuthMiddleware validates the session JWT and requires the admin flag
// on the stored user row, not just the token claim.
func AdminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, strings.TrimSpace(token))
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
