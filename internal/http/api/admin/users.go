package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	dbutil "github.com/fetchify-app/fetchify/internal/db"
	"github.com/fetchify-app/fetchify/internal/ledger"
	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler handles admin user management.
type UserHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db, ledger: ledger.New(db)}
}

// listUsersQuery defines query parameters for the user list.
type listUsersQuery struct {
	Page  int    `form:"page,default=1"`
	Limit int    `form:"limit,default=50"`
	Q     string `form:"q"`
}

// userRow carries a user plus per-user aggregate counts.
type userRow struct {
	models.User
	KeyCount      int64 `gorm:"column:key_count"`
	UsageCount    int64 `gorm:"column:usage_count"`
	PurchaseCount int64 `gorm:"column:purchase_count"`
}

// List returns all users with key, usage, and purchase counts. Supports
// pagination and a case-insensitive search over email and name.
func (h *UserHandler) List(c *gin.Context) {
	var q listUsersQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if needle := strings.TrimSpace(q.Q); needle != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+needle+"%")
		query = query.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "name"),
			pattern, pattern,
		)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []userRow
	offset := (q.Page - 1) * q.Limit
	errFind := query.Select(`
		users.*,
		(SELECT COUNT(*) FROM api_keys WHERE api_keys.user_id = users.id) AS key_count,
		(SELECT COUNT(*) FROM api_usages WHERE api_usages.user_id = users.id) AS usage_count,
		(SELECT COUNT(*) FROM purchases WHERE purchases.user_id = users.id) AS purchase_count
	`).
		Order("users.created_at DESC").
		Offset(offset).
		Limit(q.Limit).
		Scan(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":             row.ID,
			"email":          row.Email,
			"name":           row.Name,
			"credits":        row.Credits,
			"is_admin":       row.IsAdmin,
			"is_verified":    row.IsVerified,
			"key_count":      row.KeyCount,
			"usage_count":    row.UsageCount,
			"purchase_count": row.PurchaseCount,
			"created_at":     row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"users": out,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// Get returns one user with their API keys.
func (h *UserHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("APIKeys").
		First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	keys := make([]gin.H, 0, len(user.APIKeys))
	for _, key := range user.APIKeys {
		keys = append(keys, gin.H{
			"id":           key.ID,
			"name":         key.Name,
			"is_active":    key.IsActive,
			"last_used_at": key.LastUsedAt,
			"created_at":   key.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"credits":     user.Credits,
		"is_admin":    user.IsAdmin,
		"is_verified": user.IsVerified,
		"api_keys":    keys,
		"created_at":  user.CreatedAt,
	})
}

// adjustCreditsRequest defines the request body for credit grants.
type adjustCreditsRequest struct {
	Credits int64 `json:"credits"`
}

// AdjustCredits grants credits to a user account.
func (h *UserHandler) AdjustCredits(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body adjustCreditsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Credits <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits must be positive"})
		return
	}

	if errAdd := h.ledger.AddCredits(c.Request.Context(), id, body.Credits); errAdd != nil {
		if errors.Is(errAdd, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Select("credits").First(&user, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": user.Credits})
}
