package analyses

import (
	"encoding/json"
	"strings"
)

const maxReturnedIssues = 1000

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// OnPageAudit summarizes a site crawl. Counts cover every issue while Issues
// holds at most the first maxReturnedIssues of them.
type OnPageAudit struct {
	Target        string      `json:"target"`
	CrawlProgress string      `json:"crawl_progress"`
	PagesCrawled  int64       `json:"pages_crawled"`
	OnPageScore   float64     `json:"onpage_score"`
	Domain        DomainInfo  `json:"domain"`
	Metrics       PageMetrics `json:"metrics"`
	Counts        IssueCounts `json:"counts"`
	TotalIssues   int         `json:"total_issues"`
	Truncated     bool        `json:"truncated"`
	Issues        []Issue     `json:"issues"`
}

type DomainInfo struct {
	Name       string `json:"name"`
	CMS        string `json:"cms"`
	Server     string `json:"server"`
	IP         string `json:"ip"`
	TotalPages int64  `json:"total_pages"`
	SSLValid   bool   `json:"ssl_valid"`
}

type PageMetrics struct {
	LinksInternal        int64 `json:"links_internal"`
	LinksExternal        int64 `json:"links_external"`
	BrokenLinks          int64 `json:"broken_links"`
	BrokenResources      int64 `json:"broken_resources"`
	DuplicateTitle       int64 `json:"duplicate_title"`
	DuplicateDescription int64 `json:"duplicate_description"`
	DuplicateContent     int64 `json:"duplicate_content"`
	NonIndexable         int64 `json:"non_indexable"`
}

type IssueCounts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

type Issue struct {
	URL      string `json:"url"`
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type rawOnPageResult struct {
	CrawlProgress flexString                 `json:"crawl_progress"`
	CrawlStatus   flexObject[rawCrawlStatus] `json:"crawl_status"`
	DomainInfo    flexObject[rawDomainInfo]  `json:"domain_info"`
	PageMetrics   flexObject[rawPageMetrics] `json:"page_metrics"`
	Issues        rawIssueList               `json:"issues"`
}

type rawCrawlStatus struct {
	PagesCrawled flexInt `json:"pages_crawled"`
}

type rawDomainInfo struct {
	Name       flexString             `json:"name"`
	CMS        flexString             `json:"cms"`
	Server     flexString             `json:"server"`
	IP         flexString             `json:"ip"`
	TotalPages flexInt                `json:"total_pages"`
	SSLInfo    flexObject[rawSSLInfo] `json:"ssl_info"`
}

type rawSSLInfo struct {
	ValidCertificate flexBool `json:"valid_certificate"`
}

type rawPageMetrics struct {
	OnPageScore          flexFloat `json:"onpage_score"`
	LinksInternal        flexInt   `json:"links_internal"`
	LinksExternal        flexInt   `json:"links_external"`
	BrokenLinks          flexInt   `json:"broken_links"`
	BrokenResources      flexInt   `json:"broken_resources"`
	DuplicateTitle       flexInt   `json:"duplicate_title"`
	DuplicateDescription flexInt   `json:"duplicate_description"`
	DuplicateContent     flexInt   `json:"duplicate_content"`
	NonIndexable         flexInt   `json:"non_indexable"`
}

type rawIssue struct {
	URL      flexString `json:"url"`
	Check    flexString `json:"check"`
	Severity flexString `json:"severity"`
	Priority flexString `json:"priority"`
	Message  flexString `json:"message"`
}

// rawIssueList keeps one entry per array element. Elements that are not
// objects become zero issues, which count as info.
type rawIssueList []rawIssue

func (l *rawIssueList) UnmarshalJSON(data []byte) error {
	*l = rawIssueList{}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(rawIssueList, len(raw))
	for i, item := range raw {
		decodeLenient(item, &out[i])
	}
	*l = out
	return nil
}

// classifySeverity maps provider severities onto error, warning or info.
func classifySeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "high", "error":
		return SeverityError
	case "warning", "medium":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func normalizeOnPageAudit(results []json.RawMessage) (any, error) {
	out := OnPageAudit{Issues: []Issue{}}
	found := false
	for _, r := range results {
		var parsed rawOnPageResult
		if !decodeLenient(r, &parsed) {
			continue
		}
		if !found {
			found = true
			domain := parsed.DomainInfo.V
			metrics := parsed.PageMetrics.V
			out.Target = domain.Name.String()
			out.CrawlProgress = parsed.CrawlProgress.String()
			out.PagesCrawled = int64(parsed.CrawlStatus.V.PagesCrawled)
			out.OnPageScore = float64(metrics.OnPageScore)
			out.Domain = DomainInfo{
				Name:       domain.Name.String(),
				CMS:        domain.CMS.String(),
				Server:     domain.Server.String(),
				IP:         domain.IP.String(),
				TotalPages: int64(domain.TotalPages),
				SSLValid:   bool(domain.SSLInfo.V.ValidCertificate),
			}
			out.Metrics = PageMetrics{
				LinksInternal:        int64(metrics.LinksInternal),
				LinksExternal:        int64(metrics.LinksExternal),
				BrokenLinks:          int64(metrics.BrokenLinks),
				BrokenResources:      int64(metrics.BrokenResources),
				DuplicateTitle:       int64(metrics.DuplicateTitle),
				DuplicateDescription: int64(metrics.DuplicateDescription),
				DuplicateContent:     int64(metrics.DuplicateContent),
				NonIndexable:         int64(metrics.NonIndexable),
			}
		}
		for _, raw := range parsed.Issues {
			severityRaw := raw.Severity.String()
			if severityRaw == "" {
				severityRaw = raw.Priority.String()
			}
			severity := classifySeverity(severityRaw)
			switch severity {
			case SeverityError:
				out.Counts.Errors++
			case SeverityWarning:
				out.Counts.Warnings++
			default:
				out.Counts.Infos++
			}
			out.TotalIssues++
			if len(out.Issues) < maxReturnedIssues {
				out.Issues = append(out.Issues, Issue{
					URL:      raw.URL.String(),
					Check:    raw.Check.String(),
					Severity: severity,
					Message:  raw.Message.String(),
				})
			}
		}
	}
	if !found {
		return nil, errNoResults
	}
	out.Truncated = out.TotalIssues > len(out.Issues)
	return out, nil
}

// onPageCrawlRunning holds the task open while the crawler reports progress.
func onPageCrawlRunning(results []json.RawMessage) bool {
	for _, r := range results {
		var parsed rawOnPageResult
		if decodeLenient(r, &parsed) {
			return strings.EqualFold(parsed.CrawlProgress.String(), "in_progress")
		}
	}
	return false
}
