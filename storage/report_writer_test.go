package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinklog/models"
)

func sampleReport() *models.Report {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	return &models.Report{
		RunID:        "run-1",
		GeneratedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalDrinks:  3,
		DrinksByType: []models.CountItem{{Name: "Cerveza", Count: 2}, {Name: "Vino Tinto", Count: 1}},
		Beer: models.BeerSummary{
			Total: 2, Liters: 0.63,
			ByBrand: []models.CountItem{{Name: "Mahou", Count: 2}},
		},
		Locations: []models.LocationAggregate{
			{Location: "Madrid", Drinks: 3, Price: decimal.RequireFromString("9.5"), AlcoholLiters: 0.0495},
		},
		Prices: models.PriceSummary{
			Total: decimal.RequireFromString("9.5"),
			Mean:  decimal.RequireFromString("3.1666"),
			MeanByType: []models.PriceItem{
				{Name: "Cerveza", Mean: decimal.RequireFromString("2.75")},
			},
		},
		Daily: []models.DailyAggregate{
			{Day: day(1), Drinks: 2, Price: decimal.RequireFromString("5.5"), AlcoholLiters: 0.0315},
			{Day: day(2), Drinks: 1, Price: decimal.RequireFromString("4"), AlcoholLiters: 0.018},
		},
		Monthly: []models.MonthlyAggregate{
			{Month: day(1), Drinks: 3, Price: decimal.RequireFromString("9.5"), AlcoholLiters: 0.0495},
		},
		Streaks: models.StreakStats{LongestDrinking: 2, From: day(1), To: day(2), Days: 2},
		TopDrinkingDays: []models.DailyAggregate{
			{Day: day(1), Drinks: 2, Price: decimal.RequireFromString("5.5"), AlcoholLiters: 0.0315},
		},
		Quality: models.DataQuality{UnparsedDates: 1, CoercedPrices: 2},
	}
}

func TestReportWriterWritesEveryArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	paths, err := NewReportWriter(dir).WriteAll(sampleReport())
	require.NoError(t, err)
	assert.Len(t, paths, 10)

	for _, name := range []string{
		GeneralSummaryFile, BeerAnalysisFile, LocationFile, PriceAnalysisFile, StreaksFile,
		TopDrinkingFile, TopAlcoholFile, MonthlyTrendsFile, DataQualityFile, SummaryJSONFile,
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(b)
	}

	assert.Contains(t, read(GeneralSummaryFile), "Total drinks: 3")
	assert.Contains(t, read(BeerAnalysisFile), "Total beer liters: 0.63")
	assert.Contains(t, read(PriceAnalysisFile), "Average price per drink: 3.17")
	assert.Contains(t, read(StreaksFile), "Longest drinking streak: 2 days")
	assert.Contains(t, read(DataQualityFile), "Coerced prices: 2")

	assert.Equal(t, "LOCATION;DRINKS;PRICE;ALCOHOL_L\nMadrid;3;9.50;0.0495\n", read(LocationFile))
	assert.Equal(t, "MONTH;DRINKS;PRICE;ALCOHOL_L\n2025-01;3;9.50;0.0495\n", read(MonthlyTrendsFile))

	top := strings.Split(strings.TrimSpace(read(TopDrinkingFile)), "\n")
	require.Len(t, top, 2)
	assert.Equal(t, "2025-01-01;2;5.50;0.0315", top[1])
	assert.Equal(t, "DATE;DRINKS;PRICE;ALCOHOL_L\n", read(TopAlcoholFile))
}

func TestReadSummary(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReportWriter(dir).WriteAll(sampleReport())
	require.NoError(t, err)

	r, err := ReadSummary(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, 3, r.TotalDrinks)
	assert.Equal(t, "9.50", r.Prices.Total.StringFixed(2))
	require.Len(t, r.Locations, 1)
	assert.Equal(t, models.Region("Madrid"), r.Locations[0].Location)

	_, err = ReadSummary(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStreaksWithoutDatedRows(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReportWriter(dir).WriteAll(&models.Report{})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, StreaksFile))
	require.NoError(t, err)
	assert.Equal(t, "No dated rows\n", string(b))
}
