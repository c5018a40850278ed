package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CountItem is a label with the number of rows carrying it.
type CountItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceItem is a label with the mean price of its rows.
type PriceItem struct {
	Name string          `json:"name"`
	Mean decimal.Decimal `json:"mean"`
}

// DailyAggregate groups rows by calendar day.
type DailyAggregate struct {
	Day           time.Time       `json:"day"`
	Drinks        int             `json:"drinks"`
	Price         decimal.Decimal `json:"price"`
	AlcoholLiters float64         `json:"alcohol_liters"`
}

// MonthlyAggregate groups rows by calendar month. Month is the first day of
// the month.
type MonthlyAggregate struct {
	Month         time.Time       `json:"month"`
	Drinks        int             `json:"drinks"`
	Price         decimal.Decimal `json:"price"`
	AlcoholLiters float64         `json:"alcohol_liters"`
}

// LocationAggregate groups rows by inferred region.
type LocationAggregate struct {
	Location      Region          `json:"location"`
	Drinks        int             `json:"drinks"`
	Price         decimal.Decimal `json:"price"`
	AlcoholLiters float64         `json:"alcohol_liters"`
}

// PieSlice is one wedge of a share chart. Share is in [0, 1].
type PieSlice struct {
	Label string  `json:"label"`
	Value int     `json:"value"`
	Share float64 `json:"share"`
}

// BeerSummary describes the rows whose drink is beer.
type BeerSummary struct {
	Total   int         `json:"total"`
	Liters  float64     `json:"liters"`
	ByBrand []CountItem `json:"by_brand"`
}

// PriceSummary describes spending.
type PriceSummary struct {
	Total      decimal.Decimal `json:"total"`
	Mean       decimal.Decimal `json:"mean"`
	MeanByType []PriceItem     `json:"mean_by_type"`
}

// StreakStats holds the longest runs of consecutive drinking and dry days
// over the dense calendar From..To.
type StreakStats struct {
	LongestDrinking int       `json:"longest_drinking"`
	LongestDry      int       `json:"longest_dry"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	Days            int       `json:"days"`
}

// DataQuality reports how many rows took a fallback path.
type DataQuality struct {
	UnparsedDates      int `json:"unparsed_dates"`
	CoercedPrices      int `json:"coerced_prices"`
	UnmatchedDrinks    int `json:"unmatched_drinks"`
	ExcludedFromSeries int `json:"excluded_from_series"`
}

// Report holds every statistic computed over the enriched table.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalDrinks  int         `json:"total_drinks"`
	DrinksByType []CountItem `json:"drinks_by_type"`
	Beer         BeerSummary `json:"beer"`

	Locations []LocationAggregate `json:"locations"`
	Prices    PriceSummary        `json:"prices"`

	Daily   []DailyAggregate   `json:"daily"`
	Monthly []MonthlyAggregate `json:"monthly"`
	Streaks StreakStats        `json:"streaks"`

	TopDrinkingDays []DailyAggregate `json:"top_drinking_days"`
	TopAlcoholDays  []DailyAggregate `json:"top_alcohol_days"`

	DrinkTypePie []PieSlice  `json:"drink_type_pie"`
	BeerBrandPie []PieSlice  `json:"beer_brand_pie"`
	TopPlaces    []CountItem `json:"top_places"`
	HousePlaces  []CountItem `json:"house_places"`

	Quality DataQuality `json:"quality"`
}
