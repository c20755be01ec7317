package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// Type identifies the semantic shape of data requested from the upstream
// extraction provider. The set is closed; the pricing table and the provider
// payload builder both switch exhaustively over it.
type Type string

// Supported extraction types.
const (
	TypeProduct              Type = "product"
	TypeProductList          Type = "productList"
	TypeProductNavigation    Type = "productNavigation"
	TypeArticle              Type = "article"
	TypeArticleList          Type = "articleList"
	TypeArticleNavigation    Type = "articleNavigation"
	TypeForumThread          Type = "forumThread"
	TypeJobPosting           Type = "jobPosting"
	TypeJobPostingNavigation Type = "jobPostingNavigation"
	TypePageContent          Type = "pageContent"
	TypeSERP                 Type = "serp"
)

// Types lists every supported extraction type in catalog order.
var Types = []Type{
	TypeProduct,
	TypeProductList,
	TypeProductNavigation,
	TypeArticle,
	TypeArticleList,
	TypeArticleNavigation,
	TypeForumThread,
	TypeJobPosting,
	TypeJobPostingNavigation,
	TypePageContent,
	TypeSERP,
}

// Source identifies the upstream data-acquisition tier. Fidelity and cost
// increase from raw HTTP fetch to full browser rendering.
type Source string

// Supported extraction sources.
const (
	SourceHTTPResponseBody Source = "httpResponseBody"
	SourceBrowserHTMLOnly  Source = "browserHtmlOnly"
	SourceBrowserHTML      Source = "browserHtml"
)

// DefaultSource is used when a request omits the source field.
const DefaultSource = SourceBrowserHTML

// Sources lists every supported extraction source, cheapest first.
var Sources = []Source{
	SourceHTTPResponseBody,
	SourceBrowserHTMLOnly,
	SourceBrowserHTML,
}

// SourceProfile qualifies a source for the catalog: what it is good for and
// its speed/quality/cost trade-off.
type SourceProfile struct {
	Description string `json:"description"`
	Speed       string `json:"speed"`
	Quality     string `json:"quality"`
	Cost        string `json:"cost"`
}

// Profile returns the qualitative catalog labels for the source.
func (s Source) Profile() SourceProfile {
	switch s {
	case SourceHTTPResponseBody:
		return SourceProfile{
			Description: "Fast and cheap, works for most sites",
			Speed:       "Fast",
			Quality:     "Good",
			Cost:        "Low",
		}
	case SourceBrowserHTMLOnly:
		return SourceProfile{
			Description: "Better for JavaScript-heavy sites",
			Speed:       "Medium",
			Quality:     "Better",
			Cost:        "Medium",
		}
	case SourceBrowserHTML:
		return SourceProfile{
			Description: "Best quality with visual features (default)",
			Speed:       "Slower",
			Quality:     "Best",
			Cost:        "High",
		}
	}
	return SourceProfile{}
}

// ParseType validates a raw extraction type tag.
func ParseType(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported extraction type: %q", raw)
}

// ParseSource validates a raw extraction source tag. An empty value resolves
// to DefaultSource.
func ParseSource(raw string) (Source, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultSource, nil
	}
	s := Source(trimmed)
	for _, known := range Sources {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unsupported extraction source: %q", raw)
}

// countryCodePattern matches ISO 3166-1 alpha-2 country codes.
var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidCountryCode reports whether code is a two-uppercase-letter ISO code.
func ValidCountryCode(code string) bool {
	return countryCodePattern.MatchString(code)
}

// ProviderField returns the provider request field that enables extraction
// for the given type. The upstream keys both the request flag and the
// response payload by this name.
func (t Type) ProviderField() string {
	switch t {
	case TypeProduct, TypeProductList, TypeProductNavigation,
		TypeArticle, TypeArticleList, TypeArticleNavigation,
		TypeForumThread, TypeJobPosting, TypeJobPostingNavigation,
		TypePageContent, TypeSERP:
		return string(t)
	default:
		return ""
	}
}

// ProviderOptionsField returns the provider request field carrying per-type
// options, e.g. "productOptions" for the product type.
func (t Type) ProviderOptionsField() string {
	field := t.ProviderField()
	if field == "" {
		return ""
	}
	return field + "Options"
}

// Description returns the catalog description for a type.
func (t Type) Description() string {
	switch t {
	case TypeProduct:
		return "Extract data from a single product page"
	case TypeProductList:
		return "Extract data from a product listing page"
	case TypeProductNavigation:
		return "Extract navigation data from a product category page"
	case TypeArticle:
		return "Extract data from a single article/blog post"
	case TypeArticleList:
		return "Extract data from an article listing page"
	case TypeArticleNavigation:
		return "Extract navigation data from an article category page"
	case TypeForumThread:
		return "Extract data from a forum thread"
	case TypeJobPosting:
		return "Extract data from a single job posting"
	case TypeJobPostingNavigation:
		return "Extract data from a job listing page"
	case TypePageContent:
		return "Extract generic content from any page"
	case TypeSERP:
		return "Extract Google Search Engine Results Page data"
	default:
		return ""
	}
}
