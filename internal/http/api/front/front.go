// Package front exposes the dashboard API consumed by the web frontend.
package front

import (
	"net/http"
	"strings"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/http/api/front/handlers"
	"github.com/fetchify-app/fetchify/internal/mail"
	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/payments"
	"github.com/fetchify-app/fetchify/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public and authenticated dashboard routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, mailer mail.Mailer, paymentsSvc *payments.Service, frontendURL string) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/api")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, mailer, frontendURL)
	front.POST("/auth/register", authHandler.Register)
	front.POST("/auth/login", authHandler.Login)
	front.POST("/auth/verify-email", authHandler.VerifyEmail)
	front.POST("/auth/resend-verification", authHandler.ResendVerification)
	front.POST("/auth/forgot-password", authHandler.ForgotPassword)
	front.POST("/auth/reset-password", authHandler.ResetPassword)

	billingHandler := handlers.NewBillingHandler(db, paymentsSvc)
	front.GET("/packages", billingHandler.ListPackages)
	front.POST("/webhooks/stripe", billingHandler.Webhook)

	authed := front.Group("")
	authed.Use(UserAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/me", profileHandler.Get)
	authed.PUT("/me/password", profileHandler.ChangePassword)
	authed.GET("/credits/balance", profileHandler.Balance)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	authed.GET("/keys", apiKeyHandler.List)
	authed.POST("/keys", apiKeyHandler.Create)
	authed.PATCH("/keys/:id", apiKeyHandler.Update)
	authed.DELETE("/keys/:id", apiKeyHandler.Delete)

	usageHandler := handlers.NewUsageHandler(db)
	authed.GET("/usage", usageHandler.List)
	authed.GET("/usage/stats", usageHandler.Stats)

	authed.GET("/purchases", billingHandler.ListPurchases)
	authed.POST("/billing/checkout", billingHandler.CreateCheckout)
	authed.POST("/billing/portal", billingHandler.CreatePortal)
}

// UserAuthMiddleware validates session JWTs and loads the user into context.
func UserAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("isAdmin", user.IsAdmin)
		c.Next()
	}
}
