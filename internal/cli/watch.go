package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/ctxlog"
	"github.com/ppiankov/sherlock/internal/metrics"
	"github.com/ppiankov/sherlock/internal/watch"
)

var watchMetricsAddr string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
}

var watchCmd = &cobra.Command{
	Use:   "watch <incident_id>",
	Short: "Re-evaluate an incident's gates whenever its records change",
	Long: "Watches incidents/ and reports/ for changes to the incident's status,\n" +
		"coordination and review records. Every phase gate and the primary\n" +
		"finalization check are re-evaluated and each outcome change is logged.\n" +
		"Never writes records. Runs until interrupted.",
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	incidentID := args[0]
	store := newStore()
	if err := store.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger.With("incident", incidentID))

	addr := cfg.Metrics.Addr
	if watchMetricsAddr != "" {
		addr = watchMetricsAddr
	}
	metricsErr := make(chan error, 1)
	go func() { metricsErr <- metrics.Serve(ctx, addr, logger) }()

	eval := &watch.Evaluator{Lifecycle: newMachine(store), Coordination: newValidator(store)}
	w := watch.NewWatcher(store, incidentID,
		func() watch.Snapshot { return eval.Evaluate(incidentID) },
		watch.LogChanges(logger, incidentID),
	)
	w.SetDebounce(cfg.Watch.Debounce)

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s under %s (Ctrl-C to stop)\n", incidentID, store.Root())
	if err := w.Run(ctx); err != nil {
		return err
	}
	stop()
	if err := <-metricsErr; err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}
