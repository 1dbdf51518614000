// Command paperflowd watches a directory for inbound files, extracts
// structured data from each via a schema-constrained generation call, and
// fans the results out to the configured actions.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperflow/paperflow/internal/config"
	"github.com/paperflow/paperflow/internal/dispatch"
	"github.com/paperflow/paperflow/internal/extract/gemini"
	"github.com/paperflow/paperflow/internal/queue"
	"github.com/paperflow/paperflow/internal/watch"
	"github.com/paperflow/paperflow/internal/worker"
)

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "paperflowd",
		Short:         "watch a directory, extract structured data, dispatch actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to configuration file")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("paperflowd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgPath, logger)
	if err != nil {
		return err
	}

	q := queue.New()

	extractor := gemini.NewClient(gemini.Config{
		Model:        cfg.System.Model,
		PollInterval: cfg.System.PollInterval(),
	}, logger)
	dispatcher := dispatch.NewDispatcher(logger)
	wrk := worker.New(q, extractor, dispatcher, cfg.System.ProcessedDir, cfg.System.ErrorDir, logger)

	watcher := watch.New(cfg.System.WatchDir, cfg.Profiles, q, logger)
	if err := watcher.Start(); err != nil {
		return err
	}

	// The worker gets its own context: shutdown lets the in-flight item run
	// to completion instead of cancelling it.
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		wrk.Run(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("paperflowd started", "watch_dir", cfg.System.WatchDir)
	<-ctx.Done()

	// Shutdown order: no further enqueues, then let the worker drain.
	logger.Info("shutting down")
	watcher.Stop()
	q.Close()
	<-workerDone
	logger.Info("goodbye")
	return nil
}
