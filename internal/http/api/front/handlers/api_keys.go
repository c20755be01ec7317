package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/security"
	"github.com/fetchify-app/fetchify/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIKeyHandler handles API key management for dashboard users.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

// keyRow carries a key plus its ledger row count.
type keyRow struct {
	models.APIKey
	UsageCount int64 `gorm:"column:usage_count"`
}

// List returns all keys owned by the user with per-key usage counts.
func (h *APIKeyHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []keyRow
	errFind := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
		Select("api_keys.*, (SELECT COUNT(*) FROM api_usages WHERE api_usages.api_key_id = api_keys.id) AS usage_count").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := serializeAPIKey(&row.APIKey, false)
		entry["usage_count"] = row.UsageCount
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// createAPIKeyRequest defines the request body for creating keys.
type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// Create mints a new API key. The full key value is only returned here.
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate api key failed"})
		return
	}

	now := time.Now().UTC()
	row := models.APIKey{
		UserID:    userID,
		Name:      name,
		Key:       token,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}
	c.JSON(http.StatusCreated, serializeAPIKey(&row, true))
}

// updateAPIKeyRequest defines the request body for updating keys.
type updateAPIKeyRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// Update renames or toggles a key.
func (h *APIKeyHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body updateAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a key permanently. Usage history keeps its rows.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.APIKey{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// serializeAPIKey converts a key row to an API payload. The full key value
// is exposed only right after creation.
func serializeAPIKey(row *models.APIKey, includeKey bool) gin.H {
	out := gin.H{
		"id":           row.ID,
		"name":         row.Name,
		"key_masked":   util.HideAPIKey(row.Key),
		"is_active":    row.IsActive,
		"last_used_at": row.LastUsedAt,
		"created_at":   row.CreatedAt,
	}
	if includeKey {
		out["key"] = row.Key
	}
	return out
}
