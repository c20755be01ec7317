// Package extract serves the credit-metered extraction API.
package extract

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/access"
	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/extraction"
	"github.com/fetchify-app/fetchify/internal/ledger"
	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/zyte"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler serves the extraction endpoints.
type Handler struct {
	auth   *access.Authenticator
	ledger *ledger.Ledger
	client *zyte.Client
	rate   config.RateLimitConfig
}

// NewHandler constructs the extraction Handler.
func NewHandler(db *gorm.DB, client *zyte.Client, rate config.RateLimitConfig) *Handler {
	return &Handler{
		auth:   access.NewAuthenticator(db),
		ledger: ledger.New(db),
		client: client,
		rate:   rate,
	}
}

// RegisterRoutes mounts the extraction endpoints.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	if r == nil || h == nil {
		return
	}
	r.POST("/api/extract", h.Extract)
	r.GET("/api/extract", h.Catalog)
	r.GET("/api/v1/product-crawl", h.ProductCrawl)
	r.POST("/api/v1/product-crawl", h.ProductCrawl)
}

// extractRequest defines the request body for extractions. The extraction
// type field is named "type" on the wire; "extractionType" is accepted as a
// legacy alias.
type extractRequest struct {
	URL              string                     `json:"url"`
	Type             string                     `json:"type"`
	LegacyType       string                     `json:"extractionType"`
	Source           string                     `json:"source"`
	Country          string                     `json:"country"`
	CustomAttributes map[string]json.RawMessage `json:"customAttributes"`
}

// typeField resolves the wire name against its legacy alias.
func (r extractRequest) typeField() string {
	if strings.TrimSpace(r.Type) != "" {
		return r.Type
	}
	return r.LegacyType
}

// requestMetadata is the metadata block stored with usage rows and echoed in
// responses.
type requestMetadata struct {
	URL            string            `json:"url"`
	ExtractionType extraction.Type   `json:"extractionType"`
	Source         extraction.Source `json:"source"`
	Country        string            `json:"country,omitempty"`
	ProcessingTime int64             `json:"processingTime"`
}

// Extract performs one metered extraction. Validation runs before
// authentication so malformed requests are cheap to reject; nothing is
// charged unless the upstream call succeeds.
func (h *Handler) Extract(c *gin.Context) {
	var body extractRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rawURL := strings.TrimSpace(body.URL)
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	parsed, errURL := url.Parse(rawURL)
	if errURL != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be a valid http or https URL"})
		return
	}

	extractionType, errType := extraction.ParseType(body.typeField())
	if errType != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errType.Error()})
		return
	}
	source, errSource := extraction.ParseSource(body.Source)
	if errSource != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSource.Error()})
		return
	}
	// Strict pattern: lowercase codes are rejected, not normalized.
	country := strings.TrimSpace(body.Country)
	if country != "" && !extraction.ValidCountryCode(country) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "country must be a two-uppercase-letter ISO code"})
		return
	}

	apiKey, user, errAuth := h.auth.Authenticate(c.Request.Context(), c.Request)
	if errAuth != nil {
		respondAuthError(c, errAuth)
		return
	}

	recent, errCount := h.ledger.CountRecentUsage(c.Request.Context(), user.ID, apiKey.ID, h.rate.Window)
	if errCount != nil {
		log.WithError(errCount).Warn("extract: rate limit lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if recent >= int64(h.rate.Requests) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":  "rate limit exceeded",
			"limit":  h.rate.Requests,
			"window": h.rate.Window.String(),
		})
		return
	}

	cost := extraction.Cost(extractionType, source)
	balance, errBalance := h.ledger.Balance(c.Request.Context(), user.ID)
	if errBalance != nil {
		log.WithError(errBalance).Warn("extract: balance lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if balance < cost {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient credits",
			"required":  cost,
			"available": balance,
		})
		return
	}

	result, errExtract := h.client.Extract(c.Request.Context(), zyte.Request{
		URL:              rawURL,
		Type:             extractionType,
		Source:           source,
		Country:          country,
		CustomAttributes: body.CustomAttributes,
	})
	if errExtract != nil {
		log.WithError(errExtract).Error("extract: gateway misuse")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	meta := requestMetadata{
		URL:            rawURL,
		ExtractionType: extractionType,
		Source:         source,
		Country:        country,
		ProcessingTime: result.Metadata.ProcessingTime,
	}
	metaJSON, _ := json.Marshal(meta)

	if !result.Success {
		h.recordFailure(c, user, apiKey, http.StatusInternalServerError, metaJSON)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    result.Err,
			"metadata": meta,
		})
		return
	}

	remaining, errRecord := h.ledger.RecordSuccess(c.Request.Context(), ledger.Entry{
		UserID:     user.ID,
		APIKeyID:   apiKey.ID,
		Endpoint:   c.Request.URL.Path,
		Method:     c.Request.Method,
		StatusCode: http.StatusOK,
		Credits:    cost,
		Response:   result.Data,
		Metadata:   metaJSON,
	})
	if errRecord != nil {
		// A concurrent request can spend the balance between the check
		// and the debit. The extraction already happened but the user is
		// never driven negative; the attempt is logged uncharged.
		if errors.Is(errRecord, ledger.ErrInsufficientCredits) {
			h.recordFailure(c, user, apiKey, http.StatusPaymentRequired, metaJSON)
			balance, _ = h.ledger.Balance(c.Request.Context(), user.ID)
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "insufficient credits",
				"required":  cost,
				"available": balance,
			})
			return
		}
		log.WithError(errRecord).Error("extract: usage recording failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Data,
		"metadata": gin.H{
			"url":              rawURL,
			"extractionType":   extractionType,
			"source":           source,
			"country":          country,
			"processingTime":   result.Metadata.ProcessingTime,
			"creditsUsed":      cost,
			"creditsRemaining": remaining,
		},
	})
}

func (h *Handler) recordFailure(c *gin.Context, user *models.User, apiKey *models.APIKey, status int, metaJSON []byte) {
	if errRecord := h.ledger.RecordFailure(c.Request.Context(), ledger.Entry{
		UserID:     user.ID,
		APIKeyID:   apiKey.ID,
		Endpoint:   c.Request.URL.Path,
		Method:     c.Request.Method,
		StatusCode: status,
		Metadata:   metaJSON,
	}); errRecord != nil {
		log.WithError(errRecord).Warn("extract: failure recording failed")
	}
}

// respondAuthError maps authentication failures to HTTP statuses.
func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrNoCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no api key provided"})
	case errors.Is(err, access.ErrInvalidKey):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
	case errors.Is(err, access.ErrKeyDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "api key is disabled"})
	case errors.Is(err, access.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		log.WithError(err).Warn("extract: authentication failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Catalog describes the available extraction types, sources, and per-source
// credit costs. It requires no authentication.
func (h *Handler) Catalog(c *gin.Context) {
	types := make([]gin.H, 0, len(extraction.Types))
	for _, t := range extraction.Types {
		types = append(types, gin.H{
			"type":        t,
			"description": t.Description(),
			"costs":       extraction.CostTable(t),
		})
	}
	sources := make([]gin.H, 0, len(extraction.Sources))
	for _, s := range extraction.Sources {
		profile := s.Profile()
		sources = append(sources, gin.H{
			"source":      s,
			"multiplier":  extraction.SourceMultiplier(s),
			"description": profile.Description,
			"speed":       profile.Speed,
			"quality":     profile.Quality,
			"cost":        profile.Cost,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"extractionTypes": types,
		"sources":         sources,
		"defaultSource":   extraction.DefaultSource,
		"rateLimit": gin.H{
			"requests": h.rate.Requests,
			"window":   h.rate.Window.String(),
		},
		"generatedAt": time.Now().UTC(),
	})
}
