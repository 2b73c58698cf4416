package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nsefi/policy-harvester/internal/config"
	"github.com/nsefi/policy-harvester/internal/fetch"
	"github.com/nsefi/policy-harvester/internal/observability"
	"github.com/nsefi/policy-harvester/internal/pipeline"
	"github.com/nsefi/policy-harvester/internal/publish"
	"github.com/nsefi/policy-harvester/internal/sources"
)

var harvestCommand = &cobra.Command{
	Use:   "harvest",
	Short: "Run one harvest-and-publish cycle",
	Long: `Fetches the current month's announcements from every registered source,
normalizes them into canonical policy records, and publishes the batch to the
configured destination.

Configuration merges three layers, highest priority first: command-line
flags, a JSON config file (--config), and environment variables.`,
	RunE: runHarvestCmd,
}

var (
	harvestConfigPath  string
	harvestMonth       int
	harvestYear        int
	harvestSink        string
	harvestDatabaseURL string
	harvestBlobURL     string
	harvestDryRun      bool
	harvestVerbose     bool
)

func init() {
	harvestCommand.Flags().StringVar(&harvestConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	harvestCommand.Flags().IntVarP(&harvestMonth, "month", "m", 0, "Target month 1-12 (defaults to the current month)")
	harvestCommand.Flags().IntVarP(&harvestYear, "year", "y", 0, "Target year (defaults to the current year)")
	harvestCommand.Flags().StringVar(&harvestSink, "sink", "", `Publish destination: "document" or "blob"`)
	harvestCommand.Flags().StringVar(&harvestDatabaseURL, "db-url", "", "Document store connection URL (defaults to POLICY_DATABASE_URL)")
	harvestCommand.Flags().StringVar(&harvestBlobURL, "blob-url", "", "Blob store endpoint URL (defaults to POLICY_BLOB_URL)")
	harvestCommand.Flags().BoolVar(&harvestDryRun, "dry-run", false, "Harvest and report without publishing")
	harvestCommand.Flags().BoolVarP(&harvestVerbose, "verbose", "v", false, "Print a formatted run report")

	rootCmd.AddCommand(harvestCommand)
}

func runHarvestCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg := config.FromEnv()
	if harvestConfigPath != "" {
		fileCfg, err := config.Load(harvestConfigPath)
		if err != nil {
			return err
		}
		merged := fileCfg.MergeWithDefaults(*cfg)
		cfg = &merged
	}
	if cmd.Flags().Changed("sink") {
		cfg.Sink = harvestSink
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = harvestDatabaseURL
	}
	if cmd.Flags().Changed("blob-url") {
		cfg.BlobURL = harvestBlobURL
	}
	if harvestVerbose {
		cfg.Verbose = true
	}

	// Configuration problems are fatal before any network I/O.
	if err := cfg.Validate(); err != nil {
		return err
	}

	month, year := targetWindow(time.Now())
	if harvestMonth != 0 {
		if harvestMonth < 1 || harvestMonth > 12 {
			return fmt.Errorf("invalid month %d: must be 1-12", harvestMonth)
		}
		month = time.Month(harvestMonth)
	}
	if harvestYear != 0 {
		year = harvestYear
	}

	fetchOpts := fetch.DefaultOptions()
	if cfg.TimeoutSeconds > 0 {
		fetchOpts.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	sink, cleanup, err := buildSink(ctx, cfg, fetchOpts.Timeout)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	report, runErr := pipeline.Run(ctx, pipeline.Options{
		Sources: sources.Default(cfg.Endpoints, fetchOpts),
		Sink:    sink,
		Month:   month,
		Year:    year,
		Logger:  logger,
		DryRun:  harvestDryRun,
	})

	if cfg.Verbose && report != nil {
		observability.NewPrinter(os.Stdout).PrintRunReport(report)
	}

	return runErr
}

// buildSink constructs the configured publish destination. The returned
// cleanup releases the document-store pool; it is a no-op for the blob sink.
func buildSink(ctx context.Context, cfg *config.Config, timeout time.Duration) (publish.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkDocument:
		pool, err := publish.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return publish.NewDocumentSink(pool, cfg.Collection()), pool.Close, nil
	case config.SinkBlob:
		var headers map[string]string
		if cfg.BlobToken != "" {
			headers = map[string]string{"Authorization": "Bearer " + cfg.BlobToken}
		}
		sink := publish.NewBlobSink(cfg.BlobURL, &publish.BlobOptions{
			Timeout: timeout,
			Headers: headers,
		})
		return sink, func() {}, nil
	}
	return nil, nil, &config.Error{Message: fmt.Sprintf("unsupported sink %q", cfg.Sink)}
}

func targetWindow(now time.Time) (time.Month, int) {
	return now.Month(), now.Year()
}
