package analyses

import "encoding/json"

// Price is a product or offer price.
type Price struct {
	Current  float64 `json:"current"`
	Regular  float64 `json:"regular"`
	Currency string  `json:"currency"`
}

type rawPrice struct {
	Current  flexFloat  `json:"current"`
	Regular  flexFloat  `json:"regular"`
	Currency flexString `json:"currency"`
}

func (p rawPrice) canonical() Price {
	return Price{Current: float64(p.Current), Regular: float64(p.Regular), Currency: p.Currency.String()}
}

// SellerData lists the offers of a merchant seller.
type SellerData struct {
	Keyword    string        `json:"keyword"`
	TotalCount int64         `json:"total_count"`
	Sellers    []SellerOffer `json:"sellers"`
}

type SellerOffer struct {
	Position         int64  `json:"position"`
	SellerName       string `json:"seller_name"`
	Title            string `json:"title"`
	Domain           string `json:"domain"`
	URL              string `json:"url"`
	Price            Price  `json:"price"`
	Rating           Rating `json:"rating"`
	DeliveryMessage  string `json:"delivery_message"`
	ProductCondition string `json:"product_condition"`
}

type rawSellerResult struct {
	Keyword    flexString          `json:"keyword"`
	ItemsCount flexInt             `json:"items_count"`
	Items      flexList[rawSeller] `json:"items"`
}

type rawSeller struct {
	RankGroup        flexInt                 `json:"rank_group"`
	SellerName       flexString              `json:"seller_name"`
	Title            flexString              `json:"title"`
	Domain           flexString              `json:"domain"`
	URL              flexString              `json:"url"`
	Price            flexObject[rawPrice]    `json:"price"`
	Rating           flexObject[rawRating]   `json:"rating"`
	DeliveryInfo     flexObject[rawDelivery] `json:"delivery_info"`
	ProductCondition flexString              `json:"product_condition"`
}

type rawDelivery struct {
	DeliveryMessage flexString `json:"delivery_message"`
}

func normalizeSellerData(results []json.RawMessage) (any, error) {
	out := SellerData{Sellers: []SellerOffer{}}
	found := false
	for _, r := range results {
		var parsed rawSellerResult
		if !decodeLenient(r, &parsed) {
			continue
		}
		if out.Keyword == "" {
			out.Keyword = parsed.Keyword.String()
		}
		out.TotalCount += int64(parsed.ItemsCount)
		for _, s := range parsed.Items {
			found = true
			out.Sellers = append(out.Sellers, SellerOffer{
				Position:         int64(s.RankGroup),
				SellerName:       s.SellerName.String(),
				Title:            s.Title.String(),
				Domain:           s.Domain.String(),
				URL:              s.URL.String(),
				Price:            s.Price.V.canonical(),
				Rating:           s.Rating.V.canonical(),
				DeliveryMessage:  s.DeliveryInfo.V.DeliveryMessage.String(),
				ProductCondition: s.ProductCondition.String(),
			})
		}
	}
	if !found {
		return nil, errNoResults
	}
	if out.TotalCount < int64(len(out.Sellers)) {
		out.TotalCount = int64(len(out.Sellers))
	}
	return out, nil
}

// ShoppingResult is the canonical Google Shopping product listing.
type ShoppingResult struct {
	Keyword    string    `json:"keyword"`
	TotalCount int64     `json:"total_count"`
	Products   []Product `json:"products"`
}

type Product struct {
	Position     int64    `json:"position"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	ProductID    string   `json:"product_id"`
	Seller       string   `json:"seller"`
	Price        float64  `json:"price"`
	OldPrice     float64  `json:"old_price"`
	Currency     string   `json:"currency"`
	Rating       Rating   `json:"rating"`
	ReviewsCount int64    `json:"reviews_count"`
	Tags         []string `json:"tags"`
	Images       []string `json:"images"`
}

type rawShoppingResult struct {
	Keyword    flexString           `json:"keyword"`
	ItemsCount flexInt              `json:"items_count"`
	Items      flexList[rawProduct] `json:"items"`
}

type rawProduct struct {
	RankGroup     flexInt               `json:"rank_group"`
	Title         flexString            `json:"title"`
	Description   flexString            `json:"description"`
	URL           flexString            `json:"url"`
	ProductID     flexString            `json:"product_id"`
	Seller        flexString            `json:"seller"`
	Price         flexFloat             `json:"price"`
	OldPrice      flexFloat             `json:"old_price"`
	Currency      flexString            `json:"currency"`
	ProductRating flexObject[rawRating] `json:"product_rating"`
	ReviewsCount  flexInt               `json:"reviews_count"`
	Tags          flexList[flexString]  `json:"tags"`
	ProductImages flexList[flexString]  `json:"product_images"`
}

func normalizeGoogleShopping(results []json.RawMessage) (any, error) {
	out := ShoppingResult{Products: []Product{}}
	found := false
	for _, r := range results {
		var parsed rawShoppingResult
		if !decodeLenient(r, &parsed) {
			continue
		}
		found = true
		if out.Keyword == "" {
			out.Keyword = parsed.Keyword.String()
		}
		out.TotalCount += int64(parsed.ItemsCount)
		for _, p := range parsed.Items {
			out.Products = append(out.Products, Product{
				Position:     int64(p.RankGroup),
				Title:        p.Title.String(),
				Description:  p.Description.String(),
				URL:          p.URL.String(),
				ProductID:    p.ProductID.String(),
				Seller:       p.Seller.String(),
				Price:        float64(p.Price),
				OldPrice:     float64(p.OldPrice),
				Currency:     p.Currency.String(),
				Rating:       p.ProductRating.V.canonical(),
				ReviewsCount: int64(p.ReviewsCount),
				Tags:         stringsOf(p.Tags),
				Images:       stringsOf(p.ProductImages),
			})
		}
	}
	if !found {
		return nil, errNoResults
	}
	if out.TotalCount < int64(len(out.Products)) {
		out.TotalCount = int64(len(out.Products))
	}
	return out, nil
}
