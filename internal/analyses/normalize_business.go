package analyses

import "encoding/json"

// BusinessInfo is the canonical Google Business profile.
type BusinessInfo struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	AdditionalCategories []string        `json:"additional_categories"`
	Address              string          `json:"address"`
	AddressInfo          BusinessAddress `json:"address_info"`
	Phone                string          `json:"phone"`
	URL                  string          `json:"url"`
	Domain               string          `json:"domain"`
	PlaceID              string          `json:"place_id"`
	CID                  string          `json:"cid"`
	Rating               float64         `json:"rating"`
	RatingVotes          int64           `json:"rating_votes"`
	TotalPhotos          int64           `json:"total_photos"`
	IsClaimed            bool            `json:"is_claimed"`
	CurrentStatus        string          `json:"current_status"`
	Coordinates          Coordinates     `json:"coordinates"`
}

type BusinessAddress struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Region      string `json:"region"`
	CountryCode string `json:"country_code"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type rawBusinessResult struct {
	Items flexList[rawBusiness] `json:"items"`
}

type rawBusiness struct {
	Title                flexString              `json:"title"`
	Description          flexString              `json:"description"`
	Category             flexString              `json:"category"`
	AdditionalCategories flexList[flexString]    `json:"additional_categories"`
	Address              flexString              `json:"address"`
	AddressInfo          flexObject[rawAddress]  `json:"address_info"`
	Phone                flexString              `json:"phone"`
	URL                  flexString              `json:"url"`
	Domain               flexString              `json:"domain"`
	PlaceID              flexString              `json:"place_id"`
	CID                  flexString              `json:"cid"`
	Rating               flexObject[rawRating]   `json:"rating"`
	TotalPhotos          flexInt                 `json:"total_photos"`
	IsClaimed            flexBool                `json:"is_claimed"`
	Latitude             flexFloat               `json:"latitude"`
	Longitude            flexFloat               `json:"longitude"`
	WorkTime             flexObject[rawWorkTime] `json:"work_time"`
}

type rawAddress struct {
	Address     flexString `json:"address"`
	City        flexString `json:"city"`
	Zip         flexString `json:"zip"`
	Region      flexString `json:"region"`
	CountryCode flexString `json:"country_code"`
}

type rawWorkTime struct {
	WorkHours flexObject[struct {
		CurrentStatus flexString `json:"current_status"`
	}] `json:"work_hours"`
}

// normalizeBusinessInfo returns the first listing found across all results.
func normalizeBusinessInfo(results []json.RawMessage) (any, error) {
	for _, r := range results {
		var parsed rawBusinessResult
		if !decodeLenient(r, &parsed) || len(parsed.Items) == 0 {
			continue
		}
		b := parsed.Items[0]
		addr := b.AddressInfo.V
		rating := b.Rating.V.canonical()
		return BusinessInfo{
			Title:                b.Title.String(),
			Description:          b.Description.String(),
			Category:             b.Category.String(),
			AdditionalCategories: stringsOf(b.AdditionalCategories),
			Address:              b.Address.String(),
			AddressInfo: BusinessAddress{
				Street:      addr.Address.String(),
				City:        addr.City.String(),
				Zip:         addr.Zip.String(),
				Region:      addr.Region.String(),
				CountryCode: addr.CountryCode.String(),
			},
			Phone:         b.Phone.String(),
			URL:           b.URL.String(),
			Domain:        b.Domain.String(),
			PlaceID:       b.PlaceID.String(),
			CID:           b.CID.String(),
			Rating:        rating.Value,
			RatingVotes:   rating.Votes,
			TotalPhotos:   int64(b.TotalPhotos),
			IsClaimed:     bool(b.IsClaimed),
			CurrentStatus: b.WorkTime.V.WorkHours.V.CurrentStatus.String(),
			Coordinates: Coordinates{
				Latitude:  float64(b.Latitude),
				Longitude: float64(b.Longitude),
			},
		}, nil
	}
	return nil, errNoResults
}
