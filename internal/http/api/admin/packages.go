package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PackageHandler handles the credit-package catalog.
type PackageHandler struct {
	db *gorm.DB
}

// NewPackageHandler constructs a PackageHandler.
func NewPackageHandler(db *gorm.DB) *PackageHandler {
	return &PackageHandler{db: db}
}

// List returns the full catalog, inactive packages included.
func (h *PackageHandler) List(c *gin.Context) {
	var rows []models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("price_cents ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list packages failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializePackage(&row))
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

// packageRequest defines the request body for creating and updating packages.
type packageRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Credits     *int64   `json:"credits"`
	PriceCents  *int64   `json:"price_cents"`
	Features    []string `json:"features"`
	IsPopular   *bool    `json:"is_popular"`
	IsActive    *bool    `json:"is_active"`
}

// Create adds a catalog entry.
func (h *PackageHandler) Create(c *gin.Context) {
	var body packageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if body.Credits == nil || *body.Credits <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits must be positive"})
		return
	}
	if body.PriceCents == nil || *body.PriceCents <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_cents must be positive"})
		return
	}

	features := body.Features
	if features == nil {
		features = []string{}
	}
	rawFeatures, errMarshal := json.Marshal(features)
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode features failed"})
		return
	}

	row := models.CreditPackage{
		Name:       strings.TrimSpace(*body.Name),
		Credits:    *body.Credits,
		PriceCents: *body.PriceCents,
		Features:   datatypes.JSON(rawFeatures),
		IsActive:   true,
	}
	if body.Description != nil {
		row.Description = strings.TrimSpace(*body.Description)
	}
	if body.IsPopular != nil {
		row.IsPopular = *body.IsPopular
	}
	if body.IsActive != nil {
		row.IsActive = *body.IsActive
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create package failed"})
		return
	}
	c.JSON(http.StatusCreated, serializePackage(&row))
}

// Update edits a catalog entry. Only the provided fields change.
func (h *PackageHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body packageRequest
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
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.Credits != nil {
		if *body.Credits <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits must be positive"})
			return
		}
		updates["credits"] = *body.Credits
	}
	if body.PriceCents != nil {
		if *body.PriceCents <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price_cents must be positive"})
			return
		}
		updates["price_cents"] = *body.PriceCents
	}
	if body.Features != nil {
		rawFeatures, errMarshal := json.Marshal(body.Features)
		if errMarshal != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode features failed"})
			return
		}
		updates["features"] = datatypes.JSON(rawFeatures)
	}
	if body.IsPopular != nil {
		updates["is_popular"] = *body.IsPopular
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.CreditPackage{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}

	var row models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializePackage(&row))
}

// Deactivate takes a package off sale. Purchase history keeps its rows, so
// catalog entries are never hard-deleted.
func (h *PackageHandler) Deactivate(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.CreditPackage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// serializePackage converts a catalog row to an API payload. Unlike the
// public listing it includes the active flag.
func serializePackage(row *models.CreditPackage) gin.H {
	return gin.H{
		"id":          row.ID,
		"name":        row.Name,
		"description": row.Description,
		"credits":     row.Credits,
		"price_cents": row.PriceCents,
		"features":    row.Features,
		"is_popular":  row.IsPopular,
		"is_active":   row.IsActive,
		"created_at":  row.CreatedAt,
		"updated_at":  row.UpdatedAt,
	}
}
