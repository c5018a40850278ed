package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drinklog/config"
	"drinklog/models"
	"drinklog/pipeline"
	"drinklog/server"
	"drinklog/storage"
	"drinklog/utils"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	rules  *config.Rules
	logger *utils.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		a         app
		rulesPath string
		logLevel  string
	)

	root := &cobra.Command{
		Use:           "drinklog",
		Short:         "Normalize, enrich and report on a personal drink log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if rulesPath != "" {
				a.cfg.RulesPath = rulesPath
			}
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			a.logger = utils.NewLogger(utils.ParseLevel(a.cfg.LogLevel))

			if err := a.cfg.Validate(); err != nil {
				a.logger.Error("Invalid configuration: %v", err)
				return err
			}
			rules, err := config.LoadRules(a.cfg.RulesPath)
			if err != nil {
				a.logger.Error("Invalid rules: %v", err)
				return err
			}
			a.rules = rules
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
				_, err := p.Run(ctx)
				return err
			})
		},
	}
	root.PersistentFlags().StringVar(&rulesPath, "rules", "", "rules YAML file (overrides RULES_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run all stages: normalize, enrich and report",
			RunE:  root.RunE,
		},
		&cobra.Command{
			Use:   "normalize",
			Short: "Parse the raw log into the clean table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
					_, err := p.Normalize(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "enrich",
			Short: "Add serving volume and alcohol to the clean table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
					_, err := p.Enrich(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "report",
			Short: "Write statistics, charts and maps from the enriched table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
					_, err := p.Report(ctx, models.NormalizeStats{})
					return err
				})
			},
		},
		newServeCmd(&a),
	)
	return root
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the results directory and the report API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(a.cfg.ResultsDir, a.logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVE_ADDR)")
	return cmd
}

// withPipeline opens the configured sink, builds the pipeline and runs fn
// with a context cancelled on SIGINT or SIGTERM.
func (a *app) withPipeline(parent context.Context, fn func(context.Context, *pipeline.Pipeline) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Config: raw=%s | clean=%s | enriched=%s | results=%s | sink=%s",
		a.cfg.RawInputPath, a.cfg.CleanPath, a.cfg.EnrichedPath, a.cfg.ResultsDir, a.cfg.Sink)

	options := []pipeline.Option{pipeline.WithConsole(os.Stdout)}
	sink, err := a.openSink(ctx)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		options = append(options, pipeline.WithSink(sink))
	}

	start := time.Now()
	if err := fn(ctx, pipeline.New(a.cfg, a.rules, a.logger, options...)); err != nil {
		a.logger.Error("%v", err)
		return err
	}
	fmt.Printf("  Done in %v. Tables in %s, %s | Results in %s\n\n",
		time.Since(start).Round(time.Millisecond), a.cfg.CleanPath, a.cfg.EnrichedPath, a.cfg.ResultsDir)
	return nil
}

func (a *app) openSink(ctx context.Context) (storage.EntrySink, error) {
	switch a.cfg.Sink {
	case config.SinkPostgres:
		sink, err := storage.NewPostgresSink(ctx, a.cfg.DSN(), utils.RetryConfig{
			MaxAttempts: a.cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      a.logger,
		})
		if err != nil {
			a.logger.Error("Failed to connect to PostgreSQL: %v", err)
			a.logger.Error("Check POSTGRES_HOST and POSTGRES_PORT, or set SINK=none")
			return nil, err
		}
		return sink, nil
	case config.SinkSQLite:
		sink, err := storage.NewSQLiteSink(ctx, a.cfg.SQLitePath)
		if err != nil {
			a.logger.Error("Failed to open SQLite database %s: %v", a.cfg.SQLitePath, err)
			return nil, err
		}
		return sink, nil
	default:
		return nil, nil
	}
}
