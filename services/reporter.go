package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"drinklog/models"
	"drinklog/utils"
)

const (
	othersLabel = "Others"
	beerDrink   = "cerveza"
	houseMarker = "casa"
)

// ReportOptions tunes the top-N cut-offs and the pie "Others" threshold.
type ReportOptions struct {
	PieThreshold float64
	TopPlaces    int
	TopDays      int
}

// DefaultReportOptions matches the defaults in config.Load.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{PieThreshold: 0.02, TopPlaces: 15, TopDays: 10}
}

type ReportService struct {
	logger *utils.Logger
	opts   ReportOptions
}

func NewReportService(opts ReportOptions, logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger, opts: opts}
}

// Generate aggregates the enriched table. It never modifies entries.
func (s *ReportService) Generate(entries []models.EnrichedEntry) *models.Report {
	report := &models.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		Prices:      models.PriceSummary{Total: decimal.Zero, Mean: decimal.Zero},
	}

	if len(entries) == 0 {
		return report
	}

	report.TotalDrinks = len(entries)

	byType := make(map[string]int)
	byPlace := make(map[string]int)
	byHouse := make(map[string]int)
	beerBrands := make(map[string]int)
	priceByType := make(map[string]decimal.Decimal)
	locations := make(map[models.Region]*models.LocationAggregate)
	daily := make(map[time.Time]*models.DailyAggregate)
	monthly := make(map[time.Time]*models.MonthlyAggregate)

	var beerLiters float64
	total := decimal.Zero

	for _, e := range entries {
		byType[e.Drink]++
		priceByType[e.Drink] = priceByType[e.Drink].Add(e.Price)
		total = total.Add(e.Price)

		if e.Place != "" {
			byPlace[e.Place]++
			if strings.Contains(foldText(e.Place), houseMarker) {
				byHouse[e.Place]++
			}
		}

		if strings.ToLower(e.Drink) == beerDrink {
			report.Beer.Total++
			beerLiters += e.VolumeLiters
			beerBrands[e.Brand]++
		}

		if e.Category == "" && e.VolumeLiters == 0 {
			report.Quality.UnmatchedDrinks++
		}

		loc, ok := locations[e.Location]
		if !ok {
			loc = &models.LocationAggregate{Location: e.Location, Price: decimal.Zero}
			locations[e.Location] = loc
		}
		loc.Drinks++
		loc.Price = loc.Price.Add(e.Price)
		loc.AlcoholLiters += e.AlcoholLiters

		t, parsed := e.Date.Time()
		if !parsed {
			report.Quality.UnparsedDates++
			report.Quality.ExcludedFromSeries++
			continue
		}

		d, ok := daily[t]
		if !ok {
			d = &models.DailyAggregate{Day: t, Price: decimal.Zero}
			daily[t] = d
		}
		d.Drinks++
		d.Price = d.Price.Add(e.Price)
		d.AlcoholLiters += e.AlcoholLiters

		mk := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		m, ok := monthly[mk]
		if !ok {
			m = &models.MonthlyAggregate{Month: mk, Price: decimal.Zero}
			monthly[mk] = m
		}
		m.Drinks++
		m.Price = m.Price.Add(e.Price)
		m.AlcoholLiters += e.AlcoholLiters
	}

	report.DrinksByType = sortedCounts(byType)
	report.DrinkTypePie = pieSlices(report.DrinksByType, s.opts.PieThreshold)

	report.Beer.Liters = round2(beerLiters)
	report.Beer.ByBrand = sortedCounts(beerBrands)
	report.BeerBrandPie = pieSlices(report.Beer.ByBrand, s.opts.PieThreshold)

	report.TopPlaces = topN(sortedCounts(byPlace), s.opts.TopPlaces)
	report.HousePlaces = sortedCounts(byHouse)

	// Price stats
	report.Prices.Total = total
	report.Prices.Mean = meanPrice(total, len(entries))
	for _, item := range report.DrinksByType {
		report.Prices.MeanByType = append(report.Prices.MeanByType, models.PriceItem{
			Name: item.Name,
			Mean: meanPrice(priceByType[item.Name], item.Count),
		})
	}
	sort.Slice(report.Prices.MeanByType, func(i, j int) bool {
		return report.Prices.MeanByType[i].Name < report.Prices.MeanByType[j].Name
	})

	for _, loc := range locations {
		loc.AlcoholLiters = round4(loc.AlcoholLiters)
		report.Locations = append(report.Locations, *loc)
	}
	sort.Slice(report.Locations, func(i, j int) bool {
		a, b := report.Locations[i], report.Locations[j]
		if a.Drinks != b.Drinks {
			return a.Drinks > b.Drinks
		}
		return a.Location < b.Location
	})

	// Time series
	for _, d := range daily {
		d.AlcoholLiters = round4(d.AlcoholLiters)
		report.Daily = append(report.Daily, *d)
	}
	sort.Slice(report.Daily, func(i, j int) bool {
		return report.Daily[i].Day.Before(report.Daily[j].Day)
	})
	for _, m := range monthly {
		m.AlcoholLiters = round4(m.AlcoholLiters)
		report.Monthly = append(report.Monthly, *m)
	}
	sort.Slice(report.Monthly, func(i, j int) bool {
		return report.Monthly[i].Month.Before(report.Monthly[j].Month)
	})

	report.Streaks = ComputeStreaks(report.Daily)
	report.TopDrinkingDays = topDays(report.Daily, s.opts.TopDays, func(a, b models.DailyAggregate) bool {
		return a.Drinks > b.Drinks
	})
	report.TopAlcoholDays = topDays(report.Daily, s.opts.TopDays, func(a, b models.DailyAggregate) bool {
		return a.AlcoholLiters > b.AlcoholLiters
	})

	if report.Quality.ExcludedFromSeries > 0 {
		s.logger.Warn("[report] %d rows with unparsed dates left out of the time series",
			report.Quality.ExcludedFromSeries)
	}
	s.logger.Info("[report] Aggregated %d rows over %d days and %d regions",
		report.TotalDrinks, len(report.Daily), len(report.Locations))
	return report
}

// Print writes the console summary.
func (s *ReportService) Print(w io.Writer, r *models.Report) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  DRINK LOG REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total drinks      : \033[1m%d\033[0m\n", r.TotalDrinks)
	fmt.Fprintf(w, "  Beers             : \033[1m%d\033[0m (%.2f L)\n", r.Beer.Total, r.Beer.Liters)
	fmt.Fprintf(w, "  Total spending    : \033[1;32m%s €\033[0m\n", r.Prices.Total.StringFixed(2))
	fmt.Fprintf(w, "  Average per drink : \033[1;32m%s €\033[0m\n", r.Prices.Mean.StringFixed(2))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Streaks\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Streaks.Days == 0 {
		fmt.Fprintf(w, "  No dated rows\n")
	} else {
		fmt.Fprintf(w, "  Longest drinking streak : \033[1;31m%d days\033[0m\n", r.Streaks.LongestDrinking)
		fmt.Fprintf(w, "  Longest dry streak      : \033[1;32m%d days\033[0m\n", r.Streaks.LongestDry)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top Drink Types\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for i, item := range topN(r.DrinksByType, 5) {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s %d\n", i+1, truncate(item.Name, 38), item.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Drinks by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Locations) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	}
	for _, loc := range r.Locations {
		bar := strings.Repeat("█", min(loc.Drinks, 40))
		fmt.Fprintf(w, "  %-20s %s (%d)\n", truncate(string(loc.Location), 18), bar, loc.Drinks)
	}

	q := r.Quality
	if q.UnparsedDates+q.CoercedPrices+q.UnmatchedDrinks > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Data Quality\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Unparsed dates   : %d\n", q.UnparsedDates)
		fmt.Fprintf(w, "  Coerced prices   : %d\n", q.CoercedPrices)
		fmt.Fprintf(w, "  Unmatched drinks : %d\n", q.UnmatchedDrinks)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// sortedCounts orders a histogram by count descending, then name.
func sortedCounts(m map[string]int) []models.CountItem {
	items := make([]models.CountItem, 0, len(m))
	for name, n := range m {
		items = append(items, models.CountItem{Name: name, Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	return items
}

// pieSlices keeps the items whose share reaches threshold and folds the rest
// into a trailing "Others" slice.
func pieSlices(items []models.CountItem, threshold float64) []models.PieSlice {
	total := 0
	for _, it := range items {
		total += it.Count
	}
	if total == 0 {
		return nil
	}

	var slices []models.PieSlice
	others := 0
	for _, it := range items {
		share := float64(it.Count) / float64(total)
		if share < threshold {
			others += it.Count
			continue
		}
		slices = append(slices, models.PieSlice{Label: it.Name, Value: it.Count, Share: share})
	}
	if others > 0 {
		slices = append(slices, models.PieSlice{
			Label: othersLabel,
			Value: others,
			Share: float64(others) / float64(total),
		})
	}
	return slices
}

func topN(items []models.CountItem, n int) []models.CountItem {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// topDays returns up to n days ordered by better, earlier day first on ties.
func topDays(daily []models.DailyAggregate, n int, better func(a, b models.DailyAggregate) bool) []models.DailyAggregate {
	days := append([]models.DailyAggregate(nil), daily...)
	sort.SliceStable(days, func(i, j int) bool {
		if better(days[i], days[j]) {
			return true
		}
		if better(days[j], days[i]) {
			return false
		}
		return days[i].Day.Before(days[j].Day)
	})
	if n >= 0 && len(days) > n {
		days = days[:n]
	}
	return days
}

func meanPrice(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
