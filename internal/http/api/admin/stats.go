package admin

import (
	"net/http"

	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatsHandler serves platform-wide aggregates.
type StatsHandler struct {
	db *gorm.DB
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// Overview returns platform totals plus the five most recent users and
// purchases.
func (h *StatsHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	// totals holds the platform-wide counters.
	var totals struct {
		Users        int64
		APIKeys      int64
		Purchases    int64
		RevenueCents int64
		Calls        int64
		CreditsSpent int64
	}
	type countQuery struct {
		model any
		dest  *int64
	}
	counts := []countQuery{
		{&models.User{}, &totals.Users},
		{&models.APIKey{}, &totals.APIKeys},
		{&models.Purchase{}, &totals.Purchases},
		{&models.APIUsage{}, &totals.Calls},
	}
	for _, q := range counts {
		if errCount := h.db.WithContext(ctx).Model(q.model).Count(q.dest).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate failed"})
			return
		}
	}
	if errSum := h.db.WithContext(ctx).Model(&models.Purchase{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&totals.RevenueCents).Error; errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate failed"})
		return
	}
	if errSum := h.db.WithContext(ctx).Model(&models.APIUsage{}).
		Select("COALESCE(SUM(credits_used), 0)").
		Scan(&totals.CreditsSpent).Error; errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate failed"})
		return
	}

	var recentUsers []models.User
	if errFind := h.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(5).
		Find(&recentUsers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recent users failed"})
		return
	}
	users := make([]gin.H, 0, len(recentUsers))
	for _, user := range recentUsers {
		users = append(users, gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"created_at": user.CreatedAt,
		})
	}

	var recentPurchases []models.Purchase
	if errFind := h.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(5).
		Find(&recentPurchases).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recent purchases failed"})
		return
	}
	purchases := make([]gin.H, 0, len(recentPurchases))
	for _, purchase := range recentPurchases {
		entry := gin.H{
			"id":           purchase.ID,
			"amount_cents": purchase.AmountCents,
			"credits":      purchase.Credits,
			"status":       purchase.Status,
			"created_at":   purchase.CreatedAt,
		}
		if purchase.User != nil {
			entry["user_email"] = purchase.User.Email
		}
		purchases = append(purchases, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"totals": gin.H{
			"users":         totals.Users,
			"api_keys":      totals.APIKeys,
			"purchases":     totals.Purchases,
			"revenue_cents": totals.RevenueCents,
			"api_calls":     totals.Calls,
			"credits_spent": totals.CreditsSpent,
		},
		"recent_users":     users,
		"recent_purchases": purchases,
	})
}
