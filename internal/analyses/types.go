package analyses

import (
	"encoding/json"
	"sort"
	"strings"
)

// Type is one of the closed set of analysis kinds.
type Type string

const (
	TypeBusinessInfo   Type = "business-info"
	TypeSellerData     Type = "seller-data"
	TypeKeywordData    Type = "keyword-data"
	TypeGoogleShopping Type = "google-shopping"
	TypeOnPageAudit    Type = "onpage-audit"
	TypeDomainTraffic  Type = "domain-traffic"
)

// Mode says whether the provider answers immediately or via task + poll.
type Mode string

const (
	ModeSync     Mode = "sync"
	ModeDeferred Mode = "deferred"
)

// DefaultTaskEndpoint is used to poll records whose type is not registered,
// e.g. rows written by an older release.
const DefaultTaskEndpoint = "serp/google/organic/task_get/advanced"

type normalizer func(results []json.RawMessage) (any, error)

type typeSpec struct {
	Mode         Mode
	Cost         int
	PostEndpoint string
	// TaskEndpoint is the task-get path for deferred types; sync types leave it
	// empty and resolve to DefaultTaskEndpoint.
	TaskEndpoint string
	Fields       []field
	Payload      func(in Input, d RequestDefaults) map[string]any
	Normalize    normalizer
	EmptyMessage string
	// StillRunning reports a completed provider task whose data is not final yet.
	StillRunning func(results []json.RawMessage) bool
}

var registry = map[Type]typeSpec{
	TypeBusinessInfo: {
		Mode:         ModeSync,
		Cost:         1,
		PostEndpoint: "business_data/google/my_business_info/live",
		Fields: []field{
			textField("business_name", true, 700),
			textField("location", false, 200),
			textField("language", false, 10),
		},
		Payload:      localizedPayload("business_name", "keyword"),
		Normalize:    normalizeBusinessInfo,
		EmptyMessage: "Keine Business Info erhalten",
	},
	TypeSellerData: {
		Mode:         ModeSync,
		Cost:         1,
		PostEndpoint: "merchant/google/sellers/live/advanced",
		Fields: []field{
			textField("seller_name", true, 700),
			textField("location", false, 200),
			textField("language", false, 10),
		},
		Payload:      localizedPayload("seller_name", "keyword"),
		Normalize:    normalizeSellerData,
		EmptyMessage: "Keine Seller Data erhalten",
	},
	TypeKeywordData: {
		Mode:         ModeSync,
		Cost:         1,
		PostEndpoint: "keywords_data/google_ads/search_volume/live",
		Fields: []field{
			textField("keyword", true, 80),
			textField("location", false, 200),
			textField("language", false, 10),
		},
		Payload:      keywordDataPayload,
		Normalize:    normalizeKeywordData,
		EmptyMessage: "Keine Keyword Daten erhalten",
	},
	TypeGoogleShopping: {
		Mode:         ModeDeferred,
		Cost:         2,
		PostEndpoint: "merchant/google/products/task_post",
		TaskEndpoint: "merchant/google/products/task_get/advanced",
		Fields: []field{
			textField("keyword", true, 700),
			textField("location", false, 200),
			textField("language", false, 10),
			intField("depth", 1, 700, 100),
		},
		Payload:      shoppingPayload,
		Normalize:    normalizeGoogleShopping,
		EmptyMessage: "Keine Google Shopping Daten erhalten",
	},
	TypeOnPageAudit: {
		Mode:         ModeDeferred,
		Cost:         5,
		PostEndpoint: "on_page/task_post",
		TaskEndpoint: "on_page/summary",
		Fields: []field{
			domainField("target", true),
			intField("max_crawl_pages", 1, 1000, 100),
		},
		Payload:      onPagePayload,
		Normalize:    normalizeOnPageAudit,
		EmptyMessage: "Keine OnPage Daten erhalten",
		StillRunning: onPageCrawlRunning,
	},
	TypeDomainTraffic: {
		Mode:         ModeDeferred,
		Cost:         3,
		PostEndpoint: "traffic_analytics/overview/task_post",
		TaskEndpoint: "traffic_analytics/overview/task_get",
		Fields: []field{
			domainField("target", true),
		},
		Payload:      trafficPayload,
		Normalize:    normalizeDomainTraffic,
		EmptyMessage: "Keine Traffic Daten erhalten",
	},
}

// ParseType resolves a route segment to a registered type.
func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := registry[t]
	return t, ok
}

// Types lists the registered analysis types in stable order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cost returns the declared credit cost of t, or 0 when t is unknown.
func Cost(t Type) int {
	return registry[t].Cost
}

// TaskEndpoint returns the provider path used to poll tasks of type t.
// Types without a dedicated endpoint resolve to DefaultTaskEndpoint.
func TaskEndpoint(t Type) string {
	if spec, ok := registry[t]; ok && spec.TaskEndpoint != "" {
		return spec.TaskEndpoint
	}
	return DefaultTaskEndpoint
}

// normalizerFor falls back to the generic shape for unregistered types.
func normalizerFor(t Type) (normalizer, string) {
	if spec, ok := registry[t]; ok {
		return spec.Normalize, spec.EmptyMessage
	}
	return normalizeGeneric, genericEmptyMessage
}

func stillRunning(t Type, results []json.RawMessage) bool {
	spec, ok := registry[t]
	if !ok || spec.StillRunning == nil {
		return false
	}
	return spec.StillRunning(results)
}
