// Package main is the winegraph CLI: ingest review dumps into the graph and
// serve read queries over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/winegraph/internal/app"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/orchestrator"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var errRunIncomplete = errors.New("ingestion finished with failures")

func main() {
	rootCmd := &cobra.Command{
		Use:           "winegraph",
		Short:         "Wine review graph ingestion and query service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (environment overrides it)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "winegraph v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("ingest", "", "Ingest this source in the background after startup")
	rootCmd.AddCommand(serveCmd)

	ingestCmd := &cobra.Command{
		Use:   "ingest SOURCE",
		Short: "Ingest an NDJSON or JSON array source (path, - for stdin, or gs://bucket/key)",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	ingestCmd.Flags().Int("batch-size", 0, "Records per transaction (default from config)")
	ingestCmd.Flags().String("policy", "", "Invalid record policy: strict or skip (default from config)")
	ingestCmd.Flags().Int("max-attempts", 0, "Attempts per batch for transient failures (default from config)")
	ingestCmd.Flags().Bool("json", false, "Print the full report as JSON")
	rootCmd.AddCommand(ingestCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Create graph constraints and indexes",
		RunE:  runSchema,
	})

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunIncomplete) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// bootstrap loads config, applies flag overrides and builds the app. The caller
// must Close it.
func bootstrap(ctx context.Context, cmd *cobra.Command, adjust func(*app.Config)) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := app.ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Otel.Version = version

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closeLogged(ctx, a.Log, a)

	source, _ := cmd.Flags().GetString("ingest")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Serve(gctx) })
	if source != "" {
		g.Go(func() error {
			report, err := a.Services.Ingestion.Ingest(gctx, source)
			if err != nil {
				a.Log.Error("background ingestion failed", "source", source, "error", err)
				return nil
			}
			a.Log.Info("background ingestion finished", "source", source, "status", report.Status(), "batches_failed", report.BatchesFailed)
			return nil
		})
	}
	return g.Wait()
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	policy, _ := cmd.Flags().GetString("policy")
	attempts, _ := cmd.Flags().GetInt("max-attempts")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := bootstrap(ctx, cmd, func(cfg *app.Config) {
		if batchSize != 0 {
			cfg.Ingest.BatchSize = batchSize
		}
		if policy != "" {
			cfg.Ingest.Policy = orchestrator.Policy(policy)
		}
		if attempts != 0 {
			cfg.Ingest.MaxBatchAttempts = attempts
		}
	})
	if err != nil {
		return err
	}
	defer closeLogged(ctx, a.Log, a)

	report, err := a.Services.Ingestion.Ingest(ctx, args[0])
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report, asJSON); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if !report.OK() {
		return errRunIncomplete
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closeLogged(ctx, a.Log, a)
	return a.Services.Ingestion.EnsureSchema(ctx)
}

type closer interface {
	Close(ctx context.Context) error
}

// closeLogged closes c past ctx cancellation and logs a failed shutdown.
func closeLogged(ctx context.Context, log *logger.Logger, c closer) {
	if err := c.Close(context.WithoutCancel(ctx)); err != nil {
		log.Warn("shutdown", "error", err)
	}
}

func printReport(w io.Writer, r *domain.IngestionReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "run %s: %s\n", r.RunID, r.Status())
	fmt.Fprintf(w, "  records: read=%d normalized=%d skipped=%d written=%d\n",
		r.RecordsRead, r.RecordsNormalized, r.RecordsSkipped, r.RecordsWritten())
	fmt.Fprintf(w, "  batches: total=%d succeeded=%d failed=%d\n",
		r.BatchesTotal, r.BatchesSucceeded, r.BatchesFailed)
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  failed batch %d [ids %d..%d] after %d attempt(s): %s\n",
			f.Seq, f.MinID, f.MaxID, f.Attempts, f.Error)
	}
	for _, f := range r.RecordFailures {
		fmt.Fprintf(w, "  skipped line %d: %s\n", f.Line, f.Error)
	}
	if r.Cancelled {
		fmt.Fprintln(w, "  cancelled before all batches were submitted")
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	return nil
}
