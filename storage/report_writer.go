package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"drinklog/models"
)

// Artifact file names under the results directory.
const (
	GeneralSummaryFile = "general_summary.txt"
	BeerAnalysisFile   = "beer_analysis.txt"
	LocationFile       = "location_analysis.csv"
	PriceAnalysisFile  = "price_analysis.txt"
	StreaksFile        = "streaks.txt"
	TopDrinkingFile    = "top_10_drinking_days.csv"
	TopAlcoholFile     = "top_10_alcohol_days.csv"
	MonthlyTrendsFile  = "monthly_trends.csv"
	DataQualityFile    = "data_quality.txt"
	SummaryJSONFile    = "summary.json"
)

// ReportWriter turns a Report into the text, CSV and JSON artifacts of the
// results directory.
type ReportWriter struct {
	dir string
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Dir returns the results directory.
func (w *ReportWriter) Dir() string { return w.dir }

// WriteAll writes every artifact and returns the paths written.
func (w *ReportWriter) WriteAll(r *models.Report) ([]string, error) {
	steps := []struct {
		name  string
		write func(string, *models.Report) error
	}{
		{GeneralSummaryFile, writeGeneralSummary},
		{BeerAnalysisFile, writeBeerAnalysis},
		{LocationFile, writeLocations},
		{PriceAnalysisFile, writePriceAnalysis},
		{StreaksFile, writeStreaks},
		{TopDrinkingFile, writeTopDrinkingDays},
		{TopAlcoholFile, writeTopAlcoholDays},
		{MonthlyTrendsFile, writeMonthlyTrends},
		{DataQualityFile, writeDataQuality},
		{SummaryJSONFile, writeSummaryJSON},
	}

	paths := make([]string, 0, len(steps))
	for _, s := range steps {
		path := filepath.Join(w.dir, s.name)
		if err := s.write(path, r); err != nil {
			return paths, fmt.Errorf("report: %s: %w", s.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeGeneralSummary(path string, r *models.Report) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total drinks: %d\n\n", r.TotalDrinks)
	fmt.Fprintln(&b, "Drinks by type:")
	for _, item := range r.DrinksByType {
		fmt.Fprintf(&b, "  %s: %d\n", item.Name, item.Count)
	}
	return WriteFileAtomic(path, b.Bytes())
}

func writeBeerAnalysis(path string, r *models.Report) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Total beers: %d\n", r.Beer.Total)
	fmt.Fprintf(&b, "Total beer liters: %.2f\n\n", r.Beer.Liters)
	fmt.Fprintln(&b, "Beers by brand:")
	for _, item := range r.Beer.ByBrand {
		fmt.Fprintf(&b, "  %s: %d\n", item.Name, item.Count)
	}
	return WriteFileAtomic(path, b.Bytes())
}

func writePriceAnalysis(path string, r *models.Report) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Total spending: %s\n", r.Prices.Total.StringFixed(2))
	fmt.Fprintf(&b, "Average price per drink: %s\n\n", r.Prices.Mean.StringFixed(2))
	fmt.Fprintln(&b, "Average price by drink type:")
	for _, item := range r.Prices.MeanByType {
		fmt.Fprintf(&b, "  %s: %s\n", item.Name, item.Mean.StringFixed(2))
	}
	return WriteFileAtomic(path, b.Bytes())
}

func writeStreaks(path string, r *models.Report) error {
	var b bytes.Buffer
	s := r.Streaks
	if s.Days == 0 {
		fmt.Fprintln(&b, "No dated rows")
		return WriteFileAtomic(path, b.Bytes())
	}
	fmt.Fprintf(&b, "Period: %s to %s (%d days)\n",
		s.From.Format(models.DateLayout), s.To.Format(models.DateLayout), s.Days)
	fmt.Fprintf(&b, "Longest drinking streak: %d days\n", s.LongestDrinking)
	fmt.Fprintf(&b, "Longest dry streak: %d days\n", s.LongestDry)
	return WriteFileAtomic(path, b.Bytes())
}

func writeDataQuality(path string, r *models.Report) error {
	var b bytes.Buffer
	q := r.Quality
	fmt.Fprintf(&b, "Unparsed dates: %d\n", q.UnparsedDates)
	fmt.Fprintf(&b, "Coerced prices: %d\n", q.CoercedPrices)
	fmt.Fprintf(&b, "Unmatched drinks: %d\n", q.UnmatchedDrinks)
	fmt.Fprintf(&b, "Rows excluded from time series: %d\n", q.ExcludedFromSeries)
	return WriteFileAtomic(path, b.Bytes())
}

func writeLocations(path string, r *models.Report) error {
	rows := make([][]string, 0, len(r.Locations))
	for _, loc := range r.Locations {
		rows = append(rows, []string{
			string(loc.Location),
			strconv.Itoa(loc.Drinks),
			loc.Price.StringFixed(2),
			formatFloat(loc.AlcoholLiters),
		})
	}
	return writeTable(path, []string{"LOCATION", "DRINKS", "PRICE", "ALCOHOL_L"}, rows)
}

func writeTopDrinkingDays(path string, r *models.Report) error {
	return writeTable(path, dailyHeader, dailyRows(r.TopDrinkingDays))
}

func writeTopAlcoholDays(path string, r *models.Report) error {
	return writeTable(path, dailyHeader, dailyRows(r.TopAlcoholDays))
}

var dailyHeader = []string{"DATE", "DRINKS", "PRICE", "ALCOHOL_L"}

func dailyRows(days []models.DailyAggregate) [][]string {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Day.Format(models.DateLayout),
			strconv.Itoa(d.Drinks),
			d.Price.StringFixed(2),
			formatFloat(d.AlcoholLiters),
		})
	}
	return rows
}

func writeMonthlyTrends(path string, r *models.Report) error {
	rows := make([][]string, 0, len(r.Monthly))
	for _, m := range r.Monthly {
		rows = append(rows, []string{
			m.Month.Format("2006-01"),
			strconv.Itoa(m.Drinks),
			m.Price.StringFixed(2),
			formatFloat(m.AlcoholLiters),
		})
	}
	return writeTable(path, []string{"MONTH", "DRINKS", "PRICE", "ALCOHOL_L"}, rows)
}

func writeSummaryJSON(path string, r *models.Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, append(b, '\n'))
}

// ReadSummary loads the JSON summary written by WriteAll.
func ReadSummary(dir string) (*models.Report, error) {
	b, err := os.ReadFile(filepath.Join(dir, SummaryJSONFile))
	if err != nil {
		return nil, err
	}
	var r models.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("report: decode %s: %w", SummaryJSONFile, err)
	}
	return &r, nil
}

// WriteFileAtomic writes b to a temp file beside path and renames it over
// path. Intermediate directories are created automatically.
func WriteFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := f.Chmod(0644); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod %q: %w", tmp, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}
