package handlers

import (
	"net/http"
	"time"

	dbutil "github.com/fetchify-app/fetchify/internal/db"
	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsageHandler serves usage history and statistics.
type UsageHandler struct {
	db *gorm.DB
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{db: db}
}

// listUsageQuery defines query parameters for listing usage rows.
type listUsageQuery struct {
	Page    int    `form:"page,default=1"`
	Limit   int    `form:"limit,default=20"`
	Success *bool  `form:"success"`
	KeyID   uint64 `form:"api_key_id"`
}

// List returns a paginated usage history, newest first.
func (h *UsageHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q listUsageQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.APIUsage{}).Where("user_id = ?", userID)
	if q.Success != nil {
		query = query.Where("success = ?", *q.Success)
	}
	if q.KeyID != 0 {
		query = query.Where("api_key_id = ?", q.KeyID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.APIUsage
	offset := (q.Page - 1) * q.Limit
	if errFind := query.Preload("APIKey").Order("created_at DESC").Offset(offset).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":           row.ID,
			"api_key_id":   row.APIKeyID,
			"endpoint":     row.Endpoint,
			"method":       row.Method,
			"status_code":  row.StatusCode,
			"success":      row.Success,
			"credits_used": row.CreditsUsed,
			"metadata":     row.Metadata,
			"created_at":   row.CreatedAt,
		}
		if row.APIKey != nil {
			entry["api_key_name"] = row.APIKey.Name
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"usage": out,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// statsQuery defines query parameters for usage statistics.
type statsQuery struct {
	Days int `form:"days,default=30"`
}

// Stats aggregates usage over a trailing window: totals, daily buckets, and
// a per-extraction-type breakdown.
func (h *UsageHandler) Stats(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q statsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Days < 1 || q.Days > 365 {
		q.Days = 30
	}

	ctx := c.Request.Context()
	since := time.Now().UTC().AddDate(0, 0, -q.Days)

	// totals holds the aggregate usage summary.
	var totals struct {
		TotalRequests int64 `gorm:"column:total_requests"`
		SuccessCount  int64 `gorm:"column:success_count"`
		CreditsSpent  int64 `gorm:"column:credits_spent"`
	}
	if errTotals := h.db.WithContext(ctx).Model(&models.APIUsage{}).
		Select(`
			COUNT(*) AS total_requests,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count,
			COALESCE(SUM(credits_used), 0) AS credits_spent
		`).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&totals).Error; errTotals != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate failed"})
		return
	}

	// dailyRow holds one per-day usage bucket.
	type dailyRow struct {
		Day          string `gorm:"column:day" json:"day"`
		Requests     int64  `gorm:"column:requests" json:"requests"`
		CreditsSpent int64  `gorm:"column:credits_spent" json:"credits_spent"`
	}
	var daily []dailyRow
	dayExpr := "TO_CHAR(created_at, 'YYYY-MM-DD')"
	if dbutil.IsSQLite(h.db) {
		dayExpr = "strftime('%Y-%m-%d', created_at)"
	}
	if errDaily := h.db.WithContext(ctx).Model(&models.APIUsage{}).
		Select(dayExpr+" AS day, COUNT(*) AS requests, COALESCE(SUM(credits_used), 0) AS credits_spent").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("day").
		Order("day ASC").
		Scan(&daily).Error; errDaily != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "daily aggregate failed"})
		return
	}

	// typeRow holds one per-extraction-type bucket.
	type typeRow struct {
		ExtractionType string `gorm:"column:extraction_type" json:"extraction_type"`
		Requests       int64  `gorm:"column:requests" json:"requests"`
		CreditsSpent   int64  `gorm:"column:credits_spent" json:"credits_spent"`
	}
	var byType []typeRow
	typeExpr := dbutil.JSONExtractTextExpr(h.db, "metadata", "extractionType")
	if errTypes := h.db.WithContext(ctx).Model(&models.APIUsage{}).
		Select(typeExpr+" AS extraction_type, COUNT(*) AS requests, COALESCE(SUM(credits_used), 0) AS credits_spent").
		Where("user_id = ? AND created_at >= ? AND "+typeExpr+" IS NOT NULL", userID, since).
		Group("extraction_type").
		Order("requests DESC").
		Scan(&byType).Error; errTypes != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "type aggregate failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":           q.Days,
		"total_requests": totals.TotalRequests,
		"success_count":  totals.SuccessCount,
		"failure_count":  totals.TotalRequests - totals.SuccessCount,
		"credits_spent":  totals.CreditsSpent,
		"daily":          daily,
		"by_type":        byType,
	})
}
