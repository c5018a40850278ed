package render

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"drinklog/models"
	"drinklog/storage"
	"drinklog/utils"
)

// Chart file names under the results directory, without extension.
const (
	DrinksPerDayChart     = "drinks_per_day"
	AlcoholPerDayChart    = "alcohol_per_day"
	DrinksPerMonthChart   = "line_drinks_per_month"
	AlcoholPerMonthChart  = "line_alcohol_per_month"
	SpendingPerMonthChart = "line_spending_per_month"
	DrinkTypesPie         = "pie_drink_types"
	BeerBrandsPie         = "pie_beer_brands"
	TopLocationsBar       = "bar_top_locations"
	HouseLocationsBar     = "bar_house_locations"
)

const monthLayout = "2006-01"

// chartWriter is satisfied by every go-echarts chart type.
type chartWriter interface {
	Render(w io.Writer) error
}

// ChartRenderer writes the interactive HTML charts of a report.
type ChartRenderer struct {
	dir        string
	assetsHost string
	logger     *utils.Logger
}

// NewChartRenderer writes into dir. assetsHost is where the page loads the
// echarts scripts from; empty keeps the go-echarts default.
func NewChartRenderer(dir, assetsHost string, logger *utils.Logger) *ChartRenderer {
	return &ChartRenderer{dir: dir, assetsHost: assetsHost, logger: logger}
}

// RenderAll writes every chart and returns the HTML paths written.
func (c *ChartRenderer) RenderAll(r *models.Report) ([]string, error) {
	days := make([]string, 0, len(r.Daily))
	dayDrinks := make([]opts.LineData, 0, len(r.Daily))
	dayAlcohol := make([]opts.LineData, 0, len(r.Daily))
	for _, d := range r.Daily {
		days = append(days, d.Day.Format(models.DateLayout))
		dayDrinks = append(dayDrinks, opts.LineData{Value: d.Drinks})
		dayAlcohol = append(dayAlcohol, opts.LineData{Value: d.AlcoholLiters})
	}

	months := make([]string, 0, len(r.Monthly))
	monthDrinks := make([]opts.LineData, 0, len(r.Monthly))
	monthAlcohol := make([]opts.LineData, 0, len(r.Monthly))
	monthSpend := make([]opts.LineData, 0, len(r.Monthly))
	for _, m := range r.Monthly {
		months = append(months, m.Month.Format(monthLayout))
		monthDrinks = append(monthDrinks, opts.LineData{Value: m.Drinks})
		monthAlcohol = append(monthAlcohol, opts.LineData{Value: m.AlcoholLiters})
		monthSpend = append(monthSpend, opts.LineData{Value: money(m.Price)})
	}

	jobs := []struct {
		name  string
		build func() chartWriter
	}{
		{DrinksPerDayChart, func() chartWriter {
			return c.line("Number of drinks per day", "Date", "Number of drinks", days, "Drinks", dayDrinks)
		}},
		{AlcoholPerDayChart, func() chartWriter {
			return c.line("Liters of alcohol per day", "Date", "Liters of alcohol", days, "Alcohol (L)", dayAlcohol)
		}},
		{DrinksPerMonthChart, func() chartWriter {
			return c.line("Number of drinks per month", "Month", "Number of drinks", months, "Drinks", monthDrinks)
		}},
		{AlcoholPerMonthChart, func() chartWriter {
			return c.line("Liters of alcohol per month", "Month", "Liters of alcohol", months, "Alcohol (L)", monthAlcohol)
		}},
		{SpendingPerMonthChart, func() chartWriter {
			return c.line("Spending per month", "Month", "Euros", months, "Spending (€)", monthSpend)
		}},
		{DrinkTypesPie, func() chartWriter {
			return c.pie("Drink type distribution", r.DrinkTypePie)
		}},
		{BeerBrandsPie, func() chartWriter {
			return c.pie("Beer brand distribution", r.BeerBrandPie)
		}},
		{TopLocationsBar, func() chartWriter {
			return c.bar(fmt.Sprintf("Top %d drinking locations", len(r.TopPlaces)), "Location", r.TopPlaces)
		}},
		{HouseLocationsBar, func() chartWriter {
			return c.bar("Number of drinks at friends' houses", "House", r.HousePlaces)
		}},
	}

	paths := make([]string, 0, len(jobs))
	for _, job := range jobs {
		path := filepath.Join(c.dir, job.name+".html")
		var buf bytes.Buffer
		if err := job.build().Render(&buf); err != nil {
			return paths, fmt.Errorf("chart %s: render: %w", job.name, err)
		}
		if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return paths, fmt.Errorf("chart %s: %w", job.name, err)
		}
		paths = append(paths, path)
		c.logger.Debug("[charts] Wrote %s", path)
	}

	c.logger.Info("[charts] Rendered %d charts into %s", len(paths), c.dir)
	return paths, nil
}

func (c *ChartRenderer) initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  title,
		Width:      "1200px",
		Height:     "600px",
		AssetsHost: c.assetsHost,
	})
}

func (c *ChartRenderer) line(title, xName, yName string, x []string, series string, data []opts.LineData) chartWriter {
	line := charts.NewLine()
	line.SetGlobalOptions(
		c.initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	line.SetXAxis(x).AddSeries(series, data)
	return line
}

func (c *ChartRenderer) pie(title string, slices []models.PieSlice) chartWriter {
	data := make([]opts.PieData, 0, len(slices))
	for _, s := range slices {
		data = append(data, opts.PieData{Name: s.Label, Value: s.Value})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		c.initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
	)
	pie.AddSeries(title, data)
	return pie
}

// bar draws horizontal bars with the largest count on top.
func (c *ChartRenderer) bar(title, yName string, items []models.CountItem) chartWriter {
	names := make([]string, 0, len(items))
	data := make([]opts.BarData, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		names = append(names, items[i].Name)
		data = append(data, opts.BarData{Value: items[i].Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		c.initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Number of drinks", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "category"}),
	)
	bar.SetXAxis(names).AddSeries("Drinks", data)
	bar.XYReversal()
	return bar
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
