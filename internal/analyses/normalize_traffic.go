package analyses

import "encoding/json"

// DomainTraffic is the canonical traffic overview of a domain.
type DomainTraffic struct {
	Target       string         `json:"target"`
	Date         string         `json:"date"`
	Metrics      TrafficMetrics `json:"metrics"`
	Sources      TrafficSources `json:"sources"`
	TopCountries []CountryShare `json:"top_countries"`
}

type TrafficMetrics struct {
	Visits           int64   `json:"visits"`
	UniqueVisitors   int64   `json:"unique_visitors"`
	PagesPerVisit    float64 `json:"pages_per_visit"`
	AvgVisitDuration float64 `json:"avg_visit_duration"`
	BounceRate       float64 `json:"bounce_rate"`
}

type TrafficSources struct {
	Direct        float64 `json:"direct"`
	SearchOrganic float64 `json:"search_organic"`
	SearchPaid    float64 `json:"search_paid"`
	Referral      float64 `json:"referral"`
	Social        float64 `json:"social"`
	Mail          float64 `json:"mail"`
}

type CountryShare struct {
	Country string  `json:"country"`
	Share   float64 `json:"share"`
}

type rawTraffic struct {
	Target         flexString                    `json:"target"`
	Date           flexString                    `json:"date"`
	Metrics        flexObject[rawTrafficMetrics] `json:"metrics"`
	TrafficSources flexObject[rawTrafficSources] `json:"traffic_sources"`
	Countries      flexList[rawCountryShare]     `json:"countries"`
}

type rawTrafficMetrics struct {
	Visits           flexInt   `json:"visits"`
	UniqueVisitors   flexInt   `json:"unique_visitors"`
	PagesPerVisit    flexFloat `json:"pages_per_visit"`
	AvgVisitDuration flexFloat `json:"avg_visit_duration"`
	BounceRate       flexFloat `json:"bounce_rate"`
}

type rawTrafficSources struct {
	Direct        flexFloat `json:"direct"`
	SearchOrganic flexFloat `json:"search_organic"`
	SearchPaid    flexFloat `json:"search_paid"`
	Referral      flexFloat `json:"referral"`
	Social        flexFloat `json:"social"`
	Mail          flexFloat `json:"mail"`
}

type rawCountryShare struct {
	Country flexString `json:"country"`
	Share   flexFloat  `json:"share"`
}

func normalizeDomainTraffic(results []json.RawMessage) (any, error) {
	for _, r := range results {
		var t rawTraffic
		if !decodeLenient(r, &t) {
			continue
		}
		m := t.Metrics.V
		src := t.TrafficSources.V
		countries := make([]CountryShare, 0, len(t.Countries))
		for _, c := range t.Countries {
			countries = append(countries, CountryShare{Country: c.Country.String(), Share: float64(c.Share)})
		}
		return DomainTraffic{
			Target: t.Target.String(),
			Date:   t.Date.String(),
			Metrics: TrafficMetrics{
				Visits:           int64(m.Visits),
				UniqueVisitors:   int64(m.UniqueVisitors),
				PagesPerVisit:    float64(m.PagesPerVisit),
				AvgVisitDuration: float64(m.AvgVisitDuration),
				BounceRate:       float64(m.BounceRate),
			},
			Sources: TrafficSources{
				Direct:        float64(src.Direct),
				SearchOrganic: float64(src.SearchOrganic),
				SearchPaid:    float64(src.SearchPaid),
				Referral:      float64(src.Referral),
				Social:        float64(src.Social),
				Mail:          float64(src.Mail),
			},
			TopCountries: countries,
		}, nil
	}
	return nil, errNoResults
}
