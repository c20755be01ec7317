package extract

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/fetchify-app/fetchify/internal/extraction"
	"github.com/fetchify-app/fetchify/internal/ledger"
	"github.com/fetchify-app/fetchify/internal/zyte"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// productCrawlRequest defines the POST body for the legacy crawl endpoint.
type productCrawlRequest struct {
	URL string `json:"url"`
}

// ProductCrawl serves the first-generation product endpoint: a fixed
// product extraction over the cheapest source, one credit per call. GET
// takes the target as a url query parameter, POST in the JSON body.
// Billing follows the same rules as Extract: failures are never charged.
func (h *Handler) ProductCrawl(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if c.Request.Method == http.MethodPost {
		var body productCrawlRequest
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		rawURL = strings.TrimSpace(body.URL)
	}
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	parsed, errURL := url.Parse(rawURL)
	if errURL != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be a valid http or https URL"})
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

	cost := extraction.Cost(extraction.TypeProduct, extraction.SourceHTTPResponseBody)
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
		URL:    rawURL,
		Type:   extraction.TypeProduct,
		Source: extraction.SourceHTTPResponseBody,
	})
	if errExtract != nil {
		log.WithError(errExtract).Error("extract: gateway misuse")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	meta := requestMetadata{
		URL:            rawURL,
		ExtractionType: extraction.TypeProduct,
		Source:         extraction.SourceHTTPResponseBody,
		ProcessingTime: result.Metadata.ProcessingTime,
	}
	metaJSON, _ := json.Marshal(meta)

	if !result.Success {
		h.recordFailure(c, user, apiKey, http.StatusInternalServerError, metaJSON)
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Err})
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
		"data": result.Data,
		"credits": gin.H{
			"remaining": remaining,
			"used":      cost,
		},
	})
}
