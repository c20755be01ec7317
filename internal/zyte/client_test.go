package zyte

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fetchify-app/fetchify/internal/extraction"
)

func TestExtractSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://example.com/p","product":{"name":"Widget","price":"9.99"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:     "https://example.com/p",
		Type:    extraction.TypeProduct,
		Source:  extraction.SourceHTTPResponseBody,
		Country: "DE",
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got failure: %s", res.Err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-key:"))
	if gotAuth != want {
		t.Errorf("authorization header = %q, want %q", gotAuth, want)
	}
	if gotBody["url"] != "https://example.com/p" {
		t.Errorf("request url = %v", gotBody["url"])
	}
	if gotBody["product"] != true {
		t.Errorf("request type flag = %v, want true", gotBody["product"])
	}
	if gotBody["geolocation"] != "DE" {
		t.Errorf("request geolocation = %v, want DE", gotBody["geolocation"])
	}
	opts, ok := gotBody["productOptions"].(map[string]any)
	if !ok || opts["extractFrom"] != "httpResponseBody" {
		t.Errorf("request productOptions = %v", gotBody["productOptions"])
	}

	var product map[string]string
	if err := json.Unmarshal(res.Data, &product); err != nil {
		t.Fatalf("unmarshal result data: %v", err)
	}
	if product["name"] != "Widget" {
		t.Errorf("product name = %q, want Widget", product["name"])
	}
	if res.Metadata.ExtractionType != extraction.TypeProduct {
		t.Errorf("metadata type = %q", res.Metadata.ExtractionType)
	}
	if res.Metadata.ProcessingTime < 0 {
		t.Errorf("processing time = %d", res.Metadata.ProcessingTime)
	}
}

func TestExtractGzippedUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Errorf("accept-encoding = %q, want gzip offered", r.Header.Get("Accept-Encoding"))
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"product":{"name":"Widget"}}`))
		_ = gz.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:    "https://example.com/p",
		Type:   extraction.TypeProduct,
		Source: extraction.SourceHTTPResponseBody,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success for gzipped upstream response, got %q", res.Err)
	}
	var product map[string]string
	if errDecode := json.Unmarshal(res.Data, &product); errDecode != nil {
		t.Fatalf("unmarshal result data: %v", errDecode)
	}
	if product["name"] != "Widget" {
		t.Errorf("product name = %q, want Widget", product["name"])
	}
}

func TestExtractUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", 5*time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Type:   extraction.TypeArticle,
		Source: extraction.SourceBrowserHTML,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for non-2xx upstream status")
	}
	if !strings.Contains(res.Err, "extraction failed") {
		t.Errorf("error message = %q", res.Err)
	}
}

func TestExtractMissingTypeField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://example.com","statusCode":200}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Type:   extraction.TypeJobPosting,
		Source: extraction.SourceBrowserHTML,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure when type field is absent")
	}
	if !strings.Contains(res.Err, "jobPosting") {
		t.Errorf("error message should name the missing type, got %q", res.Err)
	}
}

func TestExtractTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "test-key", time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Type:   extraction.TypeProduct,
		Source: extraction.SourceBrowserHTML,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for unreachable upstream")
	}
}

func TestExtractNoAPIKey(t *testing.T) {
	c := NewClient("", "", time.Second)
	res, err := c.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Type:   extraction.TypeProduct,
		Source: extraction.SourceBrowserHTML,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure when no API key is configured")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "k", 0)
	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultEndpoint)
	}
	if c.httpc.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpc.Timeout, DefaultTimeout)
	}
}
