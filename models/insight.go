package models

// DistrictPrice is the mean price per square metre in one district.
type DistrictPrice struct {
	District    string
	Listings    int
	PricePerSqM float64
}

// InsightReport summarises a dataset after a crawl.
type InsightReport struct {
	TotalListings  int
	PricedListings int

	AveragePrice  float64
	MinPrice      float64
	MaxPrice      float64
	MostExpensive *Listing

	AveragePricePerSqM float64

	// Districts is sorted by price per square metre, highest first.
	// Districts without a single listing are listed in NoData.
	Districts    []DistrictPrice
	NoData       []string
	Unclassified int

	ListingsByMarket map[string]int
}
