package handlers

import (
	"io"
	"net/http"

	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/payments"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BillingHandler serves credit packages, purchase history, and Stripe
// integration endpoints.
type BillingHandler struct {
	db       *gorm.DB
	payments *payments.Service
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(db *gorm.DB, paymentsSvc *payments.Service) *BillingHandler {
	return &BillingHandler{db: db, payments: paymentsSvc}
}

// ListPackages returns the purchasable credit packages. Public.
func (h *BillingHandler) ListPackages(c *gin.Context) {
	var rows []models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("price_cents ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list packages failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"name":        row.Name,
			"description": row.Description,
			"credits":     row.Credits,
			"price_cents": row.PriceCents,
			"features":    row.Features,
			"is_popular":  row.IsPopular,
		})
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

// ListPurchases returns the user's purchase history, newest first.
func (h *BillingHandler) ListPurchases(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Purchase
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list purchases failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"amount_cents": row.AmountCents,
			"credits":      row.Credits,
			"status":       row.Status,
			"created_at":   row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"purchases": out})
}

// checkoutRequest defines the request body for starting a checkout.
type checkoutRequest struct {
	PackageID uint64 `json:"package_id"`
}

// CreateCheckout starts a Stripe Checkout session for a credit package.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.PackageID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package_id"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	var pkg models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_active = ?", body.PackageID, true).
		First(&pkg).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}

	url, errCheckout := h.payments.CreateCheckoutSession(c.Request.Context(), &user, &pkg)
	if errCheckout != nil {
		if errCheckout == payments.ErrNotConfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing not configured"})
			return
		}
		log.WithError(errCheckout).Warn("billing: checkout session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortal opens the Stripe customer portal.
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	url, errPortal := h.payments.CreatePortalSession(c.Request.Context(), &user)
	if errPortal != nil {
		if errPortal == payments.ErrNotConfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing not configured"})
			return
		}
		log.WithError(errPortal).Warn("billing: portal session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook receives Stripe event deliveries.
func (h *BillingHandler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if errHandle := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); errHandle != nil {
		log.WithError(errHandle).Warn("billing: webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
