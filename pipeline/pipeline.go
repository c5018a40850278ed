// Package pipeline threads the Normalizer, Enricher and Reporter stages
// through the on-disk tables and the optional database sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"drinklog/config"
	"drinklog/models"
	"drinklog/render"
	"drinklog/services"
	"drinklog/storage"
	"drinklog/utils"
)

// Pipeline runs the stages. Each stage reads its input table from disk and
// writes its output table, so stages can also run one at a time.
type Pipeline struct {
	cfg    *config.Config
	logger *utils.Logger

	normalizer *services.Normalizer
	enricher   *services.Enricher
	reporter   *services.ReportService

	reports   *storage.ReportWriter
	charts    *render.ChartRenderer
	maps      *render.MapRenderer
	snapshots *render.Snapshotter
	sink      storage.EntrySink

	// sinkCurrent is set once this process has stored the enriched table in
	// sink, so the sink is never read back with an older table.
	sinkCurrent bool

	console io.Writer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSink mirrors the enriched table into sink and reads the report input
// back from it after a successful write.
func WithSink(sink storage.EntrySink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithConsole sets where the console summary is printed. nil disables it.
func WithConsole(w io.Writer) Option {
	return func(p *Pipeline) { p.console = w }
}

// New wires the stages from cfg and rules.
func New(cfg *config.Config, rules *config.Rules, logger *utils.Logger, options ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		normalizer: services.NewNormalizer(rules, services.NormalizerOptions{
			DefaultYear: cfg.DefaultYear,
			DatePolicy:  cfg.DatePolicy,
			PricePolicy: cfg.PricePolicy,
		}, logger),
		enricher: services.NewEnricher(rules, logger),
		reporter: services.NewReportService(services.ReportOptions{
			PieThreshold: cfg.PieThreshold,
			TopPlaces:    cfg.TopPlaces,
			TopDays:      cfg.TopDays,
		}, logger),
		reports: storage.NewReportWriter(cfg.ResultsDir),
		charts:  render.NewChartRenderer(cfg.ResultsDir, cfg.ChartAssetsHost, logger),
		maps:    render.NewMapRenderer(cfg.ResultsDir, cfg.MapScale, rules, logger),
	}
	if cfg.SnapshotEnabled {
		p.snapshots = render.NewSnapshotter(render.SnapshotOptions{
			ChromeBin:   cfg.ChromeBin,
			Concurrency: cfg.SnapshotConcurrency,
			RateLimitMs: cfg.SnapshotRateLimitMs,
			MaxRetries:  cfg.MaxRetries,
		}, logger)
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run executes all three stages and returns the report.
func (p *Pipeline) Run(ctx context.Context) (*models.Report, error) {
	p.logger.Info("=== Drink log pipeline starting ===")

	nstats, err := p.Normalize(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := p.Enrich(ctx); err != nil {
		return nil, err
	}
	return p.Report(ctx, nstats)
}

// Normalize reads the raw log and writes the clean table.
func (p *Pipeline) Normalize(ctx context.Context) (models.NormalizeStats, error) {
	if err := ctx.Err(); err != nil {
		return models.NormalizeStats{}, err
	}

	raw, err := storage.ReadRaw(p.cfg.RawInputPath)
	if err != nil {
		return models.NormalizeStats{}, fmt.Errorf("normalize: %w", err)
	}
	if len(raw) == 0 {
		return models.NormalizeStats{}, fmt.Errorf("normalize: %s: %w", p.cfg.RawInputPath, services.ErrNoRows)
	}
	p.logger.Info("[pipeline] Read %d raw rows from %s", len(raw), p.cfg.RawInputPath)

	clean, stats, err := p.normalizer.Normalize(raw)
	if err != nil {
		return stats, fmt.Errorf("normalize: %w", err)
	}
	if err := storage.WriteClean(p.cfg.CleanPath, clean); err != nil {
		return stats, fmt.Errorf("normalize: %w", err)
	}
	p.logger.Info("[pipeline] Clean table saved to %s", p.cfg.CleanPath)
	return stats, nil
}

// Enrich reads the clean table, writes the enriched table and mirrors it
// into the sink when one is configured. A sink failure is logged, not fatal,
// and the report then reads the enriched CSV.
func (p *Pipeline) Enrich(ctx context.Context) (models.EnrichStats, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichStats{}, err
	}

	clean, err := storage.ReadClean(p.cfg.CleanPath)
	if err != nil {
		return models.EnrichStats{}, fmt.Errorf("enrich: %w", err)
	}
	if len(clean) == 0 {
		return models.EnrichStats{}, fmt.Errorf("enrich: %s: %w", p.cfg.CleanPath, services.ErrNoRows)
	}

	enriched, stats := p.enricher.Enrich(clean)
	if err := storage.WriteEnriched(p.cfg.EnrichedPath, enriched); err != nil {
		return stats, fmt.Errorf("enrich: %w", err)
	}
	p.logger.Info("[pipeline] Enriched table saved to %s", p.cfg.EnrichedPath)

	if p.sink != nil {
		p.sinkCurrent = false
		if err := p.sink.Write(ctx, enriched); err != nil {
			p.logger.Error("[pipeline] Sink write failed: %v", err)
		} else {
			p.sinkCurrent = true
			p.logger.Info("[pipeline] Enriched table stored in %s sink (%d rows)", p.cfg.Sink, len(enriched))
		}
	}
	return stats, nil
}

// Report aggregates the enriched table and writes every artifact. nstats
// carries the Normalizer counts that the enriched table no longer shows;
// pass the zero value when the Normalizer did not run in this process.
func (p *Pipeline) Report(ctx context.Context, nstats models.NormalizeStats) (*models.Report, error) {
	entries, err := p.loadEnriched(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	report := p.reporter.Generate(entries)
	report.Quality.CoercedPrices = nstats.CoercedPrices

	if _, err := p.reports.WriteAll(report); err != nil {
		return report, fmt.Errorf("report: %w", err)
	}
	p.logger.Info("[pipeline] Report artifacts saved to %s", p.reports.Dir())

	charts, err := p.charts.RenderAll(report)
	if err != nil {
		return report, fmt.Errorf("report: %w", err)
	}
	if _, err := p.maps.RenderAll(entries, report.Locations); err != nil {
		return report, fmt.Errorf("report: %w", err)
	}

	p.snapshot(ctx, charts)

	if p.console != nil {
		p.reporter.Print(p.console, report)
	}
	return report, nil
}

// loadEnriched reads the sink when this process stored the enriched table
// there, and the enriched CSV otherwise or when the sink read fails.
func (p *Pipeline) loadEnriched(ctx context.Context) ([]models.EnrichedEntry, error) {
	if p.sink != nil && p.sinkCurrent {
		entries, err := p.sink.FetchAll(ctx)
		switch {
		case err != nil:
			p.logger.Error("[pipeline] Failed to fetch entries from sink, using %s: %v", p.cfg.EnrichedPath, err)
		case len(entries) == 0:
			p.logger.Warn("[pipeline] Sink is empty, using %s", p.cfg.EnrichedPath)
		default:
			return entries, nil
		}
	}

	entries, err := storage.ReadEnriched(p.cfg.EnrichedPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", p.cfg.EnrichedPath, services.ErrNoRows)
	}
	return entries, nil
}

// snapshot saves PNG copies of the charts. It never fails the run: without
// a browser the HTML charts remain the only chart artifacts.
func (p *Pipeline) snapshot(ctx context.Context, charts []string) {
	if p.snapshots == nil {
		return
	}
	_, err := p.snapshots.Snapshot(ctx, charts)
	switch {
	case errors.Is(err, render.ErrBrowserNotFound):
		p.logger.Warn("[pipeline] %v, skipping PNG snapshots", err)
	case err != nil:
		p.logger.Warn("[pipeline] Some snapshots failed: %v", err)
	}
}
