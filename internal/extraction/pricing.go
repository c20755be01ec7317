package extraction

import "math"

// baseCost returns the per-type base cost in credits. SERP extraction skips
// the AI extraction pipeline upstream and is priced lower; list-style pages
// cover multiple records and are priced higher.
func baseCost(t Type) int64 {
	switch t {
	case TypeSERP:
		return 1
	case TypeProductList, TypeArticleList:
		return 3
	case TypeProduct, TypeProductNavigation,
		TypeArticle, TypeArticleNavigation,
		TypeForumThread, TypeJobPosting, TypeJobPostingNavigation,
		TypePageContent:
		return 2
	default:
		return 2
	}
}

// SourceMultiplier returns the cost multiplier for an extraction source.
func SourceMultiplier(s Source) float64 {
	switch s {
	case SourceHTTPResponseBody:
		return 0.5
	case SourceBrowserHTMLOnly:
		return 1
	case SourceBrowserHTML:
		return 1.5
	default:
		return 1
	}
}

// Cost computes the credit cost of one extraction as
// ceil(baseCost × SourceMultiplier). The result is always ≥ 1.
func Cost(t Type, s Source) int64 {
	cost := int64(math.Ceil(float64(baseCost(t)) * SourceMultiplier(s)))
	if cost < 1 {
		cost = 1
	}
	return cost
}

// CostTable returns the per-source costs for a type, keyed by source tag.
// The GET catalog endpoint exposes this table to callers.
func CostTable(t Type) map[string]int64 {
	table := make(map[string]int64, len(Sources))
	for _, s := range Sources {
		table[string(s)] = Cost(t, s)
	}
	return table
}
