package analyses

import "encoding/json"

// KeywordData holds Google Ads metrics per keyword.
type KeywordData struct {
	Keywords []KeywordMetrics `json:"keywords"`
}

type KeywordMetrics struct {
	Keyword          string          `json:"keyword"`
	SearchVolume     int64           `json:"search_volume"`
	Competition      string          `json:"competition"`
	CompetitionIndex int64           `json:"competition_index"`
	CPC              float64         `json:"cpc"`
	LowTopOfPageBid  float64         `json:"low_top_of_page_bid"`
	HighTopOfPageBid float64         `json:"high_top_of_page_bid"`
	MonthlySearches  []MonthlySearch `json:"monthly_searches"`
}

type MonthlySearch struct {
	Year         int64 `json:"year"`
	Month        int64 `json:"month"`
	SearchVolume int64 `json:"search_volume"`
}

type rawKeyword struct {
	Keyword          flexString                 `json:"keyword"`
	SearchVolume     flexInt                    `json:"search_volume"`
	Competition      flexString                 `json:"competition"`
	CompetitionIndex flexInt                    `json:"competition_index"`
	CPC              flexFloat                  `json:"cpc"`
	LowTopOfPageBid  flexFloat                  `json:"low_top_of_page_bid"`
	HighTopOfPageBid flexFloat                  `json:"high_top_of_page_bid"`
	MonthlySearches  flexList[rawMonthlySearch] `json:"monthly_searches"`
}

type rawMonthlySearch struct {
	Year         flexInt `json:"year"`
	Month        flexInt `json:"month"`
	SearchVolume flexInt `json:"search_volume"`
}

// normalizeKeywordData maps each result item, which is one keyword record.
func normalizeKeywordData(results []json.RawMessage) (any, error) {
	out := KeywordData{Keywords: []KeywordMetrics{}}
	for _, r := range results {
		var k rawKeyword
		if !decodeLenient(r, &k) {
			continue
		}
		monthly := make([]MonthlySearch, 0, len(k.MonthlySearches))
		for _, m := range k.MonthlySearches {
			monthly = append(monthly, MonthlySearch{
				Year:         int64(m.Year),
				Month:        int64(m.Month),
				SearchVolume: int64(m.SearchVolume),
			})
		}
		out.Keywords = append(out.Keywords, KeywordMetrics{
			Keyword:          k.Keyword.String(),
			SearchVolume:     int64(k.SearchVolume),
			Competition:      k.Competition.String(),
			CompetitionIndex: int64(k.CompetitionIndex),
			CPC:              float64(k.CPC),
			LowTopOfPageBid:  float64(k.LowTopOfPageBid),
			HighTopOfPageBid: float64(k.HighTopOfPageBid),
			MonthlySearches:  monthly,
		})
	}
	if len(out.Keywords) == 0 {
		return nil, errNoResults
	}
	return out, nil
}
