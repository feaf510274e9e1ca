package analyses

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"seo-analysis-backend/internal/provider"
)

func decodeInto[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestNormalizeBusinessInfoDefaultsMissingFields(t *testing.T) {
	raw := rawItems(`{"items":[{"title":"Cafe","rating":null,"total_photos":"7","is_claimed":"true","additional_categories":["Bar",null,5],"address_info":"oops"}]}`)
	out, err := Normalize(TypeBusinessInfo, raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	info := decodeInto[BusinessInfo](t, out)
	if info.Title != "Cafe" || info.Rating != 0 || info.TotalPhotos != 7 || !info.IsClaimed {
		t.Fatalf("unexpected business info %+v", info)
	}
	if len(info.AdditionalCategories) != 2 || info.AdditionalCategories[0] != "Bar" || info.AdditionalCategories[1] != "5" {
		t.Fatalf("unexpected categories %v", info.AdditionalCategories)
	}
	if info.AddressInfo != (BusinessAddress{}) {
		t.Fatalf("non-object address should default, got %+v", info.AddressInfo)
	}
	if !strings.Contains(string(out), `"additional_categories":["Bar","5"]`) {
		t.Fatalf("lists must serialize as arrays: %s", out)
	}
}

func TestNormalizeEmptyResultsUseTypeMessage(t *testing.T) {
	cases := map[Type]string{
		TypeBusinessInfo:   "Keine Business Info erhalten",
		TypeSellerData:     "Keine Seller Data erhalten",
		TypeKeywordData:    "Keine Keyword Daten erhalten",
		TypeGoogleShopping: "Keine Google Shopping Daten erhalten",
		TypeOnPageAudit:    "Keine OnPage Daten erhalten",
		TypeDomainTraffic:  "Keine Traffic Daten erhalten",
		Type("legacy"):     genericEmptyMessage,
	}
	for typ, want := range cases {
		_, err := Normalize(typ, nil)
		if !errors.Is(err, ErrEmptyResult) || !errors.Is(err, provider.ErrProvider) {
			t.Fatalf("%s: expected empty result error, got %v", typ, err)
		}
		if provider.Message(err) != want {
			t.Fatalf("%s: expected %q, got %q", typ, want, provider.Message(err))
		}
	}
}

func TestNormalizeSellerDataRequiresSellers(t *testing.T) {
	_, err := Normalize(TypeSellerData, rawItems(`{"keyword":"acme","items":null}`))
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}

	out, err := Normalize(TypeSellerData, rawItems(`{"keyword":"acme","items_count":"1","items":[{"rank_group":"2","seller_name":"Shop","price":{"current":"9.5","currency":"EUR"}}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	data := decodeInto[SellerData](t, out)
	if len(data.Sellers) != 1 || data.Sellers[0].Position != 2 || data.Sellers[0].Price.Current != 9.5 {
		t.Fatalf("unexpected sellers %+v", data.Sellers)
	}
}

func TestNormalizeKeywordDataSkipsNonObjects(t *testing.T) {
	out, err := Normalize(TypeKeywordData, rawItems(`"junk"`, `{"keyword":"seo","search_volume":"1300","cpc":null,"monthly_searches":[{"year":2024,"month":"5","search_volume":900}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	data := decodeInto[KeywordData](t, out)
	if len(data.Keywords) != 1 {
		t.Fatalf("expected one keyword, got %d", len(data.Keywords))
	}
	k := data.Keywords[0]
	if k.SearchVolume != 1300 || k.CPC != 0 || len(k.MonthlySearches) != 1 || k.MonthlySearches[0].Month != 5 {
		t.Fatalf("unexpected keyword %+v", k)
	}
}

func TestNormalizeGoogleShoppingAllowsEmptyProductList(t *testing.T) {
	out, err := Normalize(TypeGoogleShopping, rawItems(`{"keyword":"schuhe","items":[]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !strings.Contains(string(out), `"products":[]`) {
		t.Fatalf("products must be an empty array: %s", out)
	}
}

func TestNormalizeOnPageTruncatesAndCountsAll(t *testing.T) {
	issues := make([]string, 0, 1500)
	for i := 0; i < 1500; i++ {
		severity := "notice"
		switch i % 3 {
		case 0:
			severity = "critical"
		case 1:
			severity = "medium"
		}
		issues = append(issues, fmt.Sprintf(`{"url":"https://example.com/%d","check":"c%d","severity":%q}`, i, i, severity))
	}
	payload := `{"crawl_progress":"finished","crawl_status":{"pages_crawled":"42"},"domain_info":{"name":"example.com"},"issues":[` + strings.Join(issues, ",") + `]}`

	out, err := Normalize(TypeOnPageAudit, rawItems(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	audit := decodeInto[OnPageAudit](t, out)
	if len(audit.Issues) != maxReturnedIssues {
		t.Fatalf("expected %d issues, got %d", maxReturnedIssues, len(audit.Issues))
	}
	if audit.TotalIssues != 1500 || !audit.Truncated {
		t.Fatalf("expected 1500 total and truncated, got %d %v", audit.TotalIssues, audit.Truncated)
	}
	sum := audit.Counts.Errors + audit.Counts.Warnings + audit.Counts.Infos
	if sum != 1500 || audit.Counts.Errors != 500 || audit.Counts.Warnings != 500 {
		t.Fatalf("unexpected counts %+v", audit.Counts)
	}
	if audit.PagesCrawled != 42 || audit.Target != "example.com" {
		t.Fatalf("unexpected audit header %+v", audit)
	}
	if audit.Issues[0].URL != "https://example.com/0" {
		t.Fatalf("issues must keep provider order")
	}
}

func TestClassifySeverity(t *testing.T) {
	cases := map[string]string{
		"critical": SeverityError,
		"HIGH":     SeverityError,
		"error":    SeverityError,
		"warning":  SeverityWarning,
		"medium":   SeverityWarning,
		"low":      SeverityInfo,
		"":         SeverityInfo,
		"unknown":  SeverityInfo,
	}
	for in, want := range cases {
		if got := classifySeverity(in); got != want {
			t.Fatalf("classifySeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeOnPageFallsBackToPriority(t *testing.T) {
	out, err := Normalize(TypeOnPageAudit, rawItems(`{"issues":[{"priority":"high"},{"severity":null}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	audit := decodeInto[OnPageAudit](t, out)
	if audit.Counts.Errors != 1 || audit.Counts.Infos != 1 || audit.Truncated {
		t.Fatalf("unexpected counts %+v", audit.Counts)
	}
}

func TestNormalizeOnPageCountsMalformedIssuesAsInfo(t *testing.T) {
	out, err := Normalize(TypeOnPageAudit, rawItems(`{"issues":[{"severity":"critical","url":"/a"},"broken",42,null,["x"]]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	audit := decodeInto[OnPageAudit](t, out)
	if audit.TotalIssues != 5 || audit.Counts.Errors != 1 || audit.Counts.Infos != 4 {
		t.Fatalf("unexpected counts %+v total %d", audit.Counts, audit.TotalIssues)
	}
	if len(audit.Issues) != 5 || audit.Issues[1].Severity != SeverityInfo || audit.Issues[1].URL != "" {
		t.Fatalf("unexpected issues %+v", audit.Issues)
	}
}

func TestOnPageCrawlRunning(t *testing.T) {
	if !onPageCrawlRunning(rawItems(`{"crawl_progress":"in_progress"}`)) {
		t.Fatalf("expected running crawl")
	}
	if onPageCrawlRunning(rawItems(`{"crawl_progress":"finished"}`)) {
		t.Fatalf("finished crawl reported as running")
	}
	if onPageCrawlRunning(nil) {
		t.Fatalf("empty results reported as running")
	}
}

func TestNormalizeDomainTrafficLenientNumbers(t *testing.T) {
	out, err := Normalize(TypeDomainTraffic, rawItems(`{"target":"example.com","metrics":{"visits":"1200","bounce_rate":"0.41"},"countries":[{"country":"DE","share":0.7},null]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	traffic := decodeInto[DomainTraffic](t, out)
	if traffic.Metrics.Visits != 1200 || traffic.Metrics.BounceRate != 0.41 {
		t.Fatalf("unexpected metrics %+v", traffic.Metrics)
	}
	if len(traffic.TopCountries) != 1 || traffic.TopCountries[0].Country != "DE" {
		t.Fatalf("unexpected countries %+v", traffic.TopCountries)
	}
}

func TestNormalizeGenericForUnregisteredTypes(t *testing.T) {
	out, err := Normalize(Type("serp-legacy"), rawItems(`{"a":1}`, `null`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	res := decodeInto[GenericResult](t, out)
	if len(res.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(res.Items))
	}
}
