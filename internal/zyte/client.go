// Package zyte talks to the upstream web-data-extraction provider. The
// provider brand is never exposed to callers; every failure is normalized
// into a Result so ledger writes upstream of us stay consistent.
package zyte

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/extraction"

	log "github.com/sirupsen/logrus"
)

// DefaultEndpoint is the provider extraction endpoint.
const DefaultEndpoint = "https://api.zyte.com/v1/extract"

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 60 * time.Second

// Request describes one extraction to perform upstream.
type Request struct {
	URL              string                     // Target URL to extract from.
	Type             extraction.Type            // Extraction type.
	Source           extraction.Source          // Data-acquisition tier.
	Country          string                     // Optional ISO 3166-1 alpha-2 geolocation.
	CustomAttributes map[string]json.RawMessage // Optional provider passthrough attributes.
}

// Metadata describes an extraction attempt for observability. It is
// populated on success and failure alike.
type Metadata struct {
	ExtractionType extraction.Type   `json:"extractionType"`
	Source         extraction.Source `json:"source"`
	Country        string            `json:"country,omitempty"`
	ProcessingTime int64             `json:"processingTime"`
}

// Result is the normalized outcome of one upstream call.
type Result struct {
	Success  bool            // Whether extraction succeeded.
	Data     json.RawMessage // Type-keyed payload on success.
	Err      string          // Human-readable error on failure.
	Metadata Metadata        // Always populated.
}

// Client issues extraction requests against the provider API.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

// NewClient constructs a provider client. An empty endpoint falls back to
// DefaultEndpoint; a non-positive timeout falls back to DefaultTimeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(apiKey),
		httpc:    &http.Client{Timeout: timeout},
	}
}

// buildRequestBody assembles the provider request payload: the target URL,
// a boolean flag keyed by extraction type, a per-type options object carrying
// the extraction source, and an optional geolocation code.
func buildRequestBody(req Request) map[string]any {
	body := map[string]any{
		"url":                     req.URL,
		req.Type.ProviderField():  true,
		req.Type.ProviderOptionsField(): map[string]any{
			"extractFrom": string(req.Source),
		},
	}
	if req.Country != "" {
		body["geolocation"] = req.Country
	}
	if len(req.CustomAttributes) > 0 {
		body["customAttributes"] = req.CustomAttributes
	}
	return body
}

// Extract performs one synchronous extraction. It never returns an error for
// upstream failures; those are folded into the Result. The returned error is
// reserved for misuse (nil client, unmarshalable request).
func (c *Client) Extract(ctx context.Context, req Request) (Result, error) {
	if c == nil {
		return Result{}, errors.New("zyte: nil client")
	}

	start := time.Now()
	meta := func() Metadata {
		return Metadata{
			ExtractionType: req.Type,
			Source:         req.Source,
			Country:        req.Country,
			ProcessingTime: time.Since(start).Milliseconds(),
		}
	}

	if c.apiKey == "" {
		return Result{
			Success:  false,
			Err:      "extraction service is not configured",
			Metadata: meta(),
		}, nil
	}

	payload, errMarshal := json.Marshal(buildRequestBody(req))
	if errMarshal != nil {
		return Result{}, fmt.Errorf("zyte: marshal request: %w", errMarshal)
	}

	httpReq, errNew := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if errNew != nil {
		return Result{}, fmt.Errorf("zyte: build request: %w", errNew)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Content negotiation stays with the transport so compressed upstream
	// responses are decompressed before decoding.
	// Provider auth is HTTP Basic with the API key as username and an
	// empty password.
	httpReq.SetBasicAuth(c.apiKey, "")

	resp, errDo := c.httpc.Do(httpReq)
	if errDo != nil {
		log.WithError(errDo).Warn("zyte: upstream call failed")
		return Result{
			Success:  false,
			Err:      "extraction failed: upstream unreachable or timed out",
			Metadata: meta(),
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warnf("zyte: upstream returned status %d", resp.StatusCode)
		return Result{
			Success:  false,
			Err:      fmt.Sprintf("extraction failed: %s", http.StatusText(resp.StatusCode)),
			Metadata: meta(),
		}, nil
	}

	var decoded map[string]json.RawMessage
	if errDecode := json.NewDecoder(resp.Body).Decode(&decoded); errDecode != nil {
		log.WithError(errDecode).Warn("zyte: decode upstream response failed")
		return Result{
			Success:  false,
			Err:      "extraction failed: invalid upstream response",
			Metadata: meta(),
		}, nil
	}

	data, ok := decoded[req.Type.ProviderField()]
	if !ok || len(data) == 0 || string(data) == "null" {
		return Result{
			Success:  false,
			Err:      fmt.Sprintf("no %s data found in the response", req.Type),
			Metadata: meta(),
		}, nil
	}

	return Result{
		Success:  true,
		Data:     data,
		Metadata: meta(),
	}, nil
}
