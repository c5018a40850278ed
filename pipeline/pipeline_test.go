package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinklog/config"
	"drinklog/models"
	"drinklog/services"
	"drinklog/storage"
	"drinklog/utils"
)

const scenario = "DATE;DRINK;BRAND;PLACE;PRICE\n" +
	"01/01/2025;Cerveza;Mahou;Casa Madrid;3,00€\n" +
	"02/01/2025;Vino Tinto;-;Madrid Centro;4€\n" +
	"14-feb;Cerveza;Estrella;Malaga;2,50\n"

func testConfig(t *testing.T, raw string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "data", "alcohol_raw.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(rawPath), 0755))
	require.NoError(t, os.WriteFile(rawPath, []byte(raw), 0644))

	return &config.Config{
		RawInputPath: rawPath,
		CleanPath:    filepath.Join(dir, "data", "alcohol_clean.csv"),
		EnrichedPath: filepath.Join(dir, "data", "alcohol_enriched.csv"),
		ResultsDir:   filepath.Join(dir, "results"),
		DefaultYear:  2025,
		DatePolicy:   models.DatePolicyKeep,
		PricePolicy:  models.PricePolicyFail,
		PieThreshold: 0.02,
		TopPlaces:    15,
		TopDays:      10,
		MapScale:     300,
		Sink:         config.SinkNone,
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, options ...Option) *Pipeline {
	t.Helper()
	rules, err := config.DefaultRules()
	require.NoError(t, err)
	return New(cfg, rules, utils.NewLoggerTo(io.Discard, utils.LevelError), options...)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, scenario)
	var console bytes.Buffer
	p := newTestPipeline(t, cfg, WithConsole(&console))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalDrinks)
	assert.Equal(t, "9.50", report.Prices.Total.StringFixed(2))
	require.Len(t, report.Locations, 2)
	assert.Equal(t, models.Region("Madrid"), report.Locations[0].Location)
	assert.Equal(t, 2, report.Locations[0].Drinks)
	assert.Equal(t, models.Region("Malaga"), report.Locations[1].Location)

	enriched, err := storage.ReadEnriched(cfg.EnrichedPath)
	require.NoError(t, err)
	require.Len(t, enriched, 3)
	assert.Equal(t, "Estrella Galicia", enriched[2].Brand)
	assert.Equal(t, "2025-02-14", enriched[2].Date.String())
	assert.Equal(t, 0.015, enriched[0].AlcoholLiters)

	for _, name := range []string{
		storage.GeneralSummaryFile, storage.DataQualityFile, storage.SummaryJSONFile,
		"drinks_per_day.html", "pie_drink_types.html", "alcohol_map.html", "colored_alcohol_map.html",
	} {
		assert.FileExists(t, filepath.Join(cfg.ResultsDir, name))
	}
	assert.Contains(t, console.String(), "Total drinks")
}

func TestStagesRunSeparately(t *testing.T) {
	cfg := testConfig(t, scenario)
	p := newTestPipeline(t, cfg)
	ctx := context.Background()

	_, err := p.Enrich(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist, "enrich needs the clean table")

	nstats, err := p.Normalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, nstats.Rows)
	assert.FileExists(t, cfg.CleanPath)
	assert.NoFileExists(t, cfg.EnrichedPath)

	estats, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, estats.Rows)
	assert.Zero(t, estats.UnmatchedDrinks)

	report, err := p.Report(ctx, models.NormalizeStats{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalDrinks)
}

func TestNormalizeEmptyRawTable(t *testing.T) {
	p := newTestPipeline(t, testConfig(t, "DATE;DRINK;BRAND;PLACE;PRICE\n"))
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, services.ErrNoRows)
}

func TestMalformedPriceFailsRun(t *testing.T) {
	raw := scenario + "03/01/2025;Cerveza;Mahou;Casa Madrid;tres euros\n"

	cfg := testConfig(t, raw)
	_, err := newTestPipeline(t, cfg).Run(context.Background())
	var mpe *services.MalformedPriceError
	require.True(t, errors.As(err, &mpe), "got %v", err)
	assert.Equal(t, 4, mpe.Row)
	assert.NoFileExists(t, cfg.CleanPath)
}

func TestPricePolicyZeroReportsCoercedPrices(t *testing.T) {
	raw := scenario + "03/01/2025;Cerveza;Mahou;Casa Madrid;tres euros\n"

	cfg := testConfig(t, raw)
	cfg.PricePolicy = models.PricePolicyZero
	report, err := newTestPipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalDrinks)
	assert.Equal(t, 1, report.Quality.CoercedPrices)

	b, err := os.ReadFile(filepath.Join(cfg.ResultsDir, storage.DataQualityFile))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Coerced prices: 1")
}

func TestUnparsedDatesAreKeptAndCounted(t *testing.T) {
	raw := scenario + "sometime;Cerveza;Mahou;Casa Madrid;2\n"

	report, err := newTestPipeline(t, testConfig(t, raw)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalDrinks)
	assert.Equal(t, 1, report.Quality.UnparsedDates)
	assert.Equal(t, 1, report.Quality.ExcludedFromSeries)
}

func TestRunWithSQLiteSink(t *testing.T) {
	cfg := testConfig(t, scenario)
	cfg.Sink = config.SinkSQLite
	sink, err := storage.NewSQLiteSink(context.Background(), ":memory:")
	require.NoError(t, err)
	defer sink.Close()

	report, err := newTestPipeline(t, cfg, WithSink(sink)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9.50", report.Prices.Total.StringFixed(2))

	stored, err := sink.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

type failingSink struct{ writes int }

func (f *failingSink) Write(context.Context, []models.EnrichedEntry) error {
	f.writes++
	return errors.New("connection refused")
}

func (f *failingSink) FetchAll(context.Context) ([]models.EnrichedEntry, error) {
	return nil, errors.New("connection refused")
}

func (f *failingSink) Close() error { return nil }

func TestSinkFailureFallsBackToCSV(t *testing.T) {
	sink := &failingSink{}
	report, err := newTestPipeline(t, testConfig(t, scenario), WithSink(sink)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, 3, report.TotalDrinks)
}

// staleSink rejects writes but still holds a table from an earlier run.
type staleSink struct{ fetches int }

func (s *staleSink) Write(context.Context, []models.EnrichedEntry) error {
	return errors.New("disk full")
}

func (s *staleSink) FetchAll(context.Context) ([]models.EnrichedEntry, error) {
	s.fetches++
	return []models.EnrichedEntry{{CleanEntry: models.CleanEntry{
		Date:  models.UnparsedDate("old"),
		Drink: "Cerveza",
		Price: decimal.RequireFromString("99"),
	}}}, nil
}

func (s *staleSink) Close() error { return nil }

func TestFailedSinkWriteIsNotReadBack(t *testing.T) {
	sink := &staleSink{}
	report, err := newTestPipeline(t, testConfig(t, scenario), WithSink(sink)).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sink.fetches)
	assert.Equal(t, 3, report.TotalDrinks)
	assert.Equal(t, "9.50", report.Prices.Total.StringFixed(2))
}

func TestIsoLookingUnparsedDateStaysUnparsedInReport(t *testing.T) {
	raw := scenario + "2025-01-05;Cerveza;Mahou;Casa Madrid;2\n"
	cfg := testConfig(t, raw)

	report, err := newTestPipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Quality.UnparsedDates)
	assert.Len(t, report.Daily, 3)

	b, err := os.ReadFile(filepath.Join(cfg.ResultsDir, "data_quality.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Unparsed dates: 1")
}

func TestReportTotalsKeepPricePrecision(t *testing.T) {
	raw := "DATE;DRINK;BRAND;PLACE;PRICE\n" +
		"01/01/2025;Cerveza;Mahou;Casa Madrid;1,005\n" +
		"02/01/2025;Cerveza;Mahou;Casa Madrid;1,005\n"

	report, err := newTestPipeline(t, testConfig(t, raw)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.010", report.Prices.Total.StringFixed(3))
}

func TestRunHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t, testConfig(t, scenario)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
