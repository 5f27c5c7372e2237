package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/KevinDz11/nopro/internal/ingest"
	"github.com/KevinDz11/nopro/internal/metrics"
	"github.com/KevinDz11/nopro/internal/server"
	"github.com/KevinDz11/nopro/internal/store"
	"github.com/KevinDz11/nopro/internal/worker"
)

var (
	drainTimeout time.Duration
	initialScan  bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis service",
	Long: `Serve runs analyses in the background behind an HTTP API:

  POST /v1/documents                   submit a document (JSON body)
  GET  /v1/documents                   list documents
  GET  /v1/documents/{id}              status and report
  GET  /v1/documents/{id}/checklist.xlsx
  GET  /healthz, /metrics

With --inbox, files dropped under <inbox>/<category>/<type>/ are submitted
automatically once they stop changing.

Example:
  nopro serve --addr :8080
  nopro serve --inbox ./inbox --store sqlite`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().String("inbox", "", "watch this directory for dropped documents")
	serveCmd.Flags().String("store", "", "record store (memory, disk, sqlite, layered)")
	serveCmd.Flags().Int("workers", 0, "concurrent analyses (default: concurrency.workers)")
	serveCmd.Flags().BoolVar(&initialScan, "initial-scan", true, "submit documents already in the inbox at start")
	serveCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "time allowed for queued analyses at shutdown")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.inbox", serveCmd.Flags().Lookup("inbox"))
	_ = viper.BindPFlag("store.driver", serveCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("concurrency.workers", serveCmd.Flags().Lookup("workers"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	m := metrics.New()
	a, err := newApp(cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := store.New(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	// Build the detector up front so the first label does not pay for it
	go func() {
		if err := a.vision.Init(ctx); err != nil {
			logger.Warn("visual detector unavailable, labels will be resolved without visual evidence", "error", err)
		}
	}()

	queue := worker.NewQueue(a.pipeline, st, cfg.Concurrency, m, logger)
	queue.Start()

	srv := server.New(cfg.Server, queue, st, prometheus.DefaultGatherer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if cfg.Server.Inbox != "" {
		w := ingest.NewWatcher(ingest.Config{
			Root:        cfg.Server.Inbox,
			InitialScan: initialScan,
		}, queue, logger)
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				return fmt.Errorf("inbox watcher: %w", err)
			}
			return nil
		})
	}

	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := queue.Close(drainCtx); err != nil {
		logger.Warn("analyses still running at shutdown", "error", err)
	}
	return runErr
}
