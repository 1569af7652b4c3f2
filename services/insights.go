package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"otodom-scraper/models"
	"otodom-scraper/utils"
)

type InsightService struct {
	logger    *utils.Logger
	districts []string
	out       io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// WithDistricts lists every known district so the report can name the ones
// without listings.
func (s *InsightService) WithDistricts(names []string) *InsightService {
	s.districts = names
	return s
}

func (s *InsightService) SetOutput(w io.Writer) {
	s.out = w
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByMarket: make(map[string]int),
	}

	if len(listings) == 0 {
		report.NoData = append(report.NoData, s.districts...)
		return report
	}

	report.TotalListings = len(listings)
	s.logger.Debug("[insights] Summarising %d listings", len(listings))

	type acc struct {
		sum   float64
		count int
	}
	byDistrict := map[string]*acc{}

	var priceTotal, perSqMTotal float64
	var perSqMCount int

	for _, l := range listings {
		if l.Market != nil && *l.Market != "" {
			report.ListingsByMarket[*l.Market]++
		}
		if l.District == nil || *l.District == "" {
			report.Unclassified++
		}

		if l.Price != nil && *l.Price > 0 {
			price := *l.Price
			if report.PricedListings == 0 || price < report.MinPrice {
				report.MinPrice = price
			}
			if report.PricedListings == 0 || price > report.MaxPrice {
				report.MaxPrice = price
				report.MostExpensive = l
			}
			report.PricedListings++
			priceTotal += price
		}

		// Per listing the value is truncated to whole zloty before averaging.
		perSqM, ok := l.PricePerSqM()
		if !ok {
			continue
		}
		perSqM = float64(int64(perSqM))
		perSqMTotal += perSqM
		perSqMCount++

		if l.District != nil && *l.District != "" {
			a := byDistrict[*l.District]
			if a == nil {
				a = &acc{}
				byDistrict[*l.District] = a
			}
			a.sum += perSqM
			a.count++
		}
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(priceTotal / float64(report.PricedListings))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}
	if perSqMCount > 0 {
		report.AveragePricePerSqM = round2(perSqMTotal / float64(perSqMCount))
	}

	for name, a := range byDistrict {
		report.Districts = append(report.Districts, models.DistrictPrice{
			District:    name,
			Listings:    a.count,
			PricePerSqM: round2(a.sum / float64(a.count)),
		})
	}
	sort.Slice(report.Districts, func(i, j int) bool {
		di, dj := report.Districts[i], report.Districts[j]
		if di.PricePerSqM != dj.PricePerSqM {
			return di.PricePerSqM > dj.PricePerSqM
		}
		return di.District < dj.District
	})

	for _, name := range s.districts {
		if byDistrict[name] == nil {
			report.NoData = append(report.NoData, name)
		}
	}
	sort.Strings(report.NoData)

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 OTODOM DATASET INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings in dataset    : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Listings with a price  : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintf(w, "  Outside every district : \033[1m%d\033[0m\n", r.Unclassified)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (PLN)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price     : \033[1;32m%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price     : \033[1;32m%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price     : \033[1;32m%.2f\033[0m\n", r.MaxPrice)
		if r.AveragePricePerSqM > 0 {
			fmt.Fprintf(w, "  Average per m²    : \033[1;32m%.2f\033[0m\n", r.AveragePricePerSqM)
		}
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Link, 56))
		if d := r.MostExpensive.District; d != nil {
			fmt.Fprintf(w, "  District : %s\n", *d)
		}
		fmt.Fprintf(w, "  Price    : \033[1;31m%.2f PLN\033[0m\n", *r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	// ── PRICE PER M² BY DISTRICT ─────────────────────────────────────────
	fmt.Fprintf(w, "\033[1;33m  Average Price per m² by District\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Districts) == 0 {
		fmt.Fprintf(w, "  No district data\n")
	} else {
		top := r.Districts[0].PricePerSqM
		for i, d := range r.Districts {
			bar := ""
			if top > 0 {
				bar = strings.Repeat("█", int(d.PricePerSqM/top*20+0.5))
			}
			fmt.Fprintf(w, "  \033[1m%2d.\033[0m %-28s %-20s \033[1;32m%9.2f\033[0m (%d)\n",
				i+1, truncate(d.District, 28), bar, d.PricePerSqM, d.Listings)
		}
	}
	if len(r.NoData) > 0 {
		fmt.Fprintf(w, "  No listings: %s\n", strings.Join(r.NoData, ", "))
	}
	fmt.Fprintln(w)

	// Listings by Market
	fmt.Fprintf(w, "\033[1;33m  Listings by Market\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByMarket) == 0 {
		fmt.Fprintf(w, "  No market data\n")
	} else {
		type marketCount struct {
			market string
			count  int
		}
		var markets []marketCount
		for m, cnt := range r.ListingsByMarket {
			markets = append(markets, marketCount{m, cnt})
		}
		sort.Slice(markets, func(i, j int) bool {
			if markets[i].count != markets[j].count {
				return markets[i].count > markets[j].count
			}
			return markets[i].market < markets[j].market
		})
		for _, mc := range markets {
			fmt.Fprintf(w, "  %-20s %d\n", mc.market, mc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
