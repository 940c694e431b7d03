package models

// SupplementRecord is the normalized projection of one shopping result
type SupplementRecord struct {
	Name  string   `json:"name"`
	Link  string   `json:"link"`
	Price *float64 `json:"price"` // null when the provider has no extracted price
	Image string   `json:"image"`
}

// ShoppingFunctionArgs represents arguments for fetch_supplement_info
type ShoppingFunctionArgs struct {
	Query string `json:"query"`
}

// ReviewFunctionArgs represents arguments for search_reviews_duckduckgo
type ReviewFunctionArgs struct {
	Supplement string `json:"supplement"`
}
